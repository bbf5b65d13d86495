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

// BanStore persists ban records. Bans are history: resolving one flips
// its banned flag instead of deleting the row.
type BanStore struct {
	db DBTX
}

func NewBanStore(db DBTX) *BanStore {
	return &BanStore{db: db}
}

func (s *BanStore) WithTx(tx *sql.Tx) *BanStore {
	return &BanStore{db: tx}
}

// Create opens an unresolved ban on a mother.
func (s *BanStore) Create(ctx context.Context, motherID int64, comment string) (*models.Ban, error) {
	ban := &models.Ban{
		MotherID:  motherID,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bans (mother_id, comment, created_at, banned)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id`,
		ban.MotherID, ban.Comment, ban.CreatedAt,
	).Scan(&ban.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create ban: %w", err)
	}
	return ban, nil
}

// GetByID returns the ban with the given id, or ErrNotFound.
func (s *BanStore) GetByID(ctx context.Context, id int64) (*models.Ban, error) {
	var ban models.Ban
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mother_id, comment, created_at, banned
		FROM bans WHERE id = $1`, id,
	).Scan(&ban.ID, &ban.MotherID, &ban.Comment, &ban.CreatedAt, &ban.Banned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ban: %w", err)
	}
	return &ban, nil
}

// Unresolved returns the open ban of a mother, or ErrNotFound.
func (s *BanStore) Unresolved(ctx context.Context, motherID int64) (*models.Ban, error) {
	var ban models.Ban
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mother_id, comment, created_at, banned
		FROM bans
		WHERE mother_id = $1 AND banned = FALSE
		ORDER BY id DESC
		LIMIT 1`, motherID,
	).Scan(&ban.ID, &ban.MotherID, &ban.Comment, &ban.CreatedAt, &ban.Banned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unresolved ban: %w", err)
	}
	return &ban, nil
}

// Resolve marks the ban as served. The row stays for history.
func (s *BanStore) Resolve(ctx context.Context, banID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bans SET banned = TRUE WHERE id = $1 AND banned = FALSE`, banID)
	if err != nil {
		return fmt.Errorf("failed to resolve ban: %w", err)
	}
	return requireRowAffected(result)
}

// AnyActionable reports whether any of the given ban ids is still
// unresolved with its mother currently on the ban stage. This is the
// existence check behind the ban panel's list access.
func (s *BanStore) AnyActionable(ctx context.Context, banIDs []int64) (bool, error) {
	if len(banIDs) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(banIDs))
	args := make([]any, len(banIDs))
	for i, id := range banIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bans b
			JOIN stages st ON st.mother_id = b.mother_id
				AND st.stage = 'ban' AND st.finished = FALSE
			WHERE b.banned = FALSE AND b.id IN (`+strings.Join(placeholders, ", ")+`)
		)`, args...,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check actionable bans: %w", err)
	}
	return exists, nil
}

// ListActionableByIDs returns, out of the given ban ids, the unresolved
// bans whose mother is currently on the ban stage, oldest first.
func (s *BanStore) ListActionableByIDs(ctx context.Context, banIDs []int64) ([]*models.Ban, error) {
	if len(banIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(banIDs))
	args := make([]any, len(banIDs))
	for i, id := range banIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.mother_id, b.comment, b.created_at, b.banned
		FROM bans b
		JOIN stages st ON st.mother_id = b.mother_id
			AND st.stage = 'ban' AND st.finished = FALSE
		WHERE b.banned = FALSE AND b.id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY b.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actionable bans: %w", err)
	}
	defer rows.Close()

	var bans []*models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(&b.ID, &b.MotherID, &b.Comment, &b.CreatedAt, &b.Banned); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, &b)
	}
	return bans, rows.Err()
}

// ListUnresolved returns every unresolved ban, oldest first.
func (s *BanStore) ListUnresolved(ctx context.Context) ([]*models.Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, comment, created_at, banned
		FROM bans
		WHERE banned = FALSE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved bans: %w", err)
	}
	defer rows.Close()

	var bans []*models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(&b.ID, &b.MotherID, &b.Comment, &b.CreatedAt, &b.Banned); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, &b)
	}
	return bans, rows.Err()
}

// History returns all bans of a mother, oldest first.
func (s *BanStore) History(ctx context.Context, motherID int64) ([]*models.Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, comment, created_at, banned
		FROM bans
		WHERE mother_id = $1
		ORDER BY id`, motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ban history: %w", err)
	}
	defer rows.Close()

	var bans []*models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(&b.ID, &b.MotherID, &b.Comment, &b.CreatedAt, &b.Banned); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, &b)
	}
	return bans, rows.Err()
}
