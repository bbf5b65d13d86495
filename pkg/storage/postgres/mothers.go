package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

const motherColumns = `id, name, number, program, residence, height_and_weight,
	bad_habits, caesarean, children_age, age, citizenship, blood, maried,
	external_id, created_at`

// MotherStore persists mother records.
type MotherStore struct {
	db DBTX
}

// NewMotherStore creates a mother store bound to db.
func NewMotherStore(db DBTX) *MotherStore {
	return &MotherStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *MotherStore) WithTx(tx *sql.Tx) *MotherStore {
	return &MotherStore{db: tx}
}

// Create inserts m and fills in its ID and CreatedAt.
func (s *MotherStore) Create(ctx context.Context, m *models.Mother) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO mothers (name, number, program, residence, height_and_weight,
			bad_habits, caesarean, children_age, age, citizenship, blood, maried,
			external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		m.Name, m.Number, m.Program, m.Residence, m.HeightAndWeight,
		m.BadHabits, m.Caesarean, m.ChildrenAge, m.Age, m.Citizenship,
		m.Blood, m.Maried, m.ExternalID, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create mother: %w", err)
	}
	return nil
}

// GetByID returns the mother with the given id, or ErrNotFound.
func (s *MotherStore) GetByID(ctx context.Context, id int64) (*models.Mother, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+motherColumns+` FROM mothers WHERE id = $1`, id)
	return scanMother(row)
}

// GetByExternalID returns the mother ingested from the given mailbox
// message id, or ErrNotFound.
func (s *MotherStore) GetByExternalID(ctx context.Context, externalID string) (*models.Mother, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+motherColumns+` FROM mothers WHERE external_id = $1`, externalID)
	return scanMother(row)
}

// ExternalIDExists reports whether a mother was already ingested from
// the given mailbox message id.
func (s *MotherStore) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM mothers WHERE external_id = $1)`, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check external id: %w", err)
	}
	return exists, nil
}

// Update rewrites all demographic fields of m.
func (s *MotherStore) Update(ctx context.Context, m *models.Mother) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mothers SET name = $1, number = $2, program = $3, residence = $4,
			height_and_weight = $5, bad_habits = $6, caesarean = $7,
			children_age = $8, age = $9, citizenship = $10, blood = $11,
			maried = $12
		WHERE id = $13`,
		m.Name, m.Number, m.Program, m.Residence, m.HeightAndWeight,
		m.BadHabits, m.Caesarean, m.ChildrenAge, m.Age, m.Citizenship,
		m.Blood, m.Maried, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mother: %w", err)
	}
	return requireRowAffected(result)
}

// ListAtStage returns mothers whose current (unfinished) stage record
// matches stage, excluding revoked mothers.
func (s *MotherStore) ListAtStage(ctx context.Context, stage models.StageName) ([]*models.Mother, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("m", motherColumns)+`
		FROM mothers m
		JOIN stages s ON s.mother_id = m.id AND s.stage = $1 AND s.finished = FALSE
		WHERE NOT EXISTS (
			SELECT 1 FROM comments c WHERE c.mother_id = m.id AND c.revoked = TRUE
		)
		ORDER BY m.id`, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list mothers at stage: %w", err)
	}
	defer rows.Close()
	return scanMothers(rows)
}

// IDsAtStage returns, out of candidates, the ids whose current stage
// record matches stage, excluding revoked mothers. Used as the
// existence check behind list access, so it must see exactly what the
// panels show.
func (s *MotherStore) IDsAtStage(ctx context.Context, stage models.StageName, candidates []int64) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(candidates))
	args := make([]any, 0, len(candidates)+1)
	args = append(args, stage)
	for i, id := range candidates {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT s.mother_id FROM stages s
		WHERE s.stage = $1 AND s.finished = FALSE
		AND s.mother_id IN (`+strings.Join(placeholders, ", ")+`)
		AND NOT EXISTS (
			SELECT 1 FROM comments c WHERE c.mother_id = s.mother_id AND c.revoked = TRUE
		)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter ids at stage: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByIDs returns the mothers with the given ids, ordered by id.
// Unknown ids are skipped.
func (s *MotherStore) ListByIDs(ctx context.Context, ids []int64) ([]*models.Mother, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+motherColumns+` FROM mothers
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mothers by ids: %w", err)
	}
	defer rows.Close()
	return scanMothers(rows)
}

// Delete removes a mother permanently. Only trash-stage records should
// reach this; stage history and grants cascade away with the row.
func (s *MotherStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mothers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mother: %w", err)
	}
	return requireRowAffected(result)
}

func scanMother(row *sql.Row) (*models.Mother, error) {
	var m models.Mother
	err := row.Scan(&m.ID, &m.Name, &m.Number, &m.Program, &m.Residence,
		&m.HeightAndWeight, &m.BadHabits, &m.Caesarean, &m.ChildrenAge,
		&m.Age, &m.Citizenship, &m.Blood, &m.Maried, &m.ExternalID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mother: %w", err)
	}
	return &m, nil
}

func scanMothers(rows *sql.Rows) ([]*models.Mother, error) {
	var mothers []*models.Mother
	for rows.Next() {
		var m models.Mother
		err := rows.Scan(&m.ID, &m.Name, &m.Number, &m.Program, &m.Residence,
			&m.HeightAndWeight, &m.BadHabits, &m.Caesarean, &m.ChildrenAge,
			&m.Age, &m.Citizenship, &m.Blood, &m.Maried, &m.ExternalID, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mother: %w", err)
		}
		mothers = append(mothers, &m)
	}
	return mothers, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
