package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

// StageStore persists the stage history of mothers. Stage records are
// append-only: moving a mother forward finishes the current record and
// inserts a fresh one.
type StageStore struct {
	db DBTX
}

func NewStageStore(db DBTX) *StageStore {
	return &StageStore{db: db}
}

func (s *StageStore) WithTx(tx *sql.Tx) *StageStore {
	return &StageStore{db: tx}
}

// Create inserts a new unfinished stage record for a mother.
func (s *StageStore) Create(ctx context.Context, motherID int64, stage models.StageName) (*models.Stage, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	record := &models.Stage{
		MotherID:  motherID,
		Stage:     stage,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stages (mother_id, stage, created_at, finished)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id`,
		record.MotherID, record.Stage, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage record: %w", err)
	}
	return record, nil
}

// Current returns the newest unfinished stage record of a mother, or
// ErrNotFound when the mother has no open stage.
func (s *StageStore) Current(ctx context.Context, motherID int64) (*models.Stage, error) {
	var record models.Stage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mother_id, stage, created_at, finished
		FROM stages
		WHERE mother_id = $1 AND finished = FALSE
		ORDER BY id DESC
		LIMIT 1`, motherID,
	).Scan(&record.ID, &record.MotherID, &record.Stage, &record.CreatedAt, &record.Finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current stage: %w", err)
	}
	return &record, nil
}

// FinishCurrent marks every unfinished stage record of a mother as
// finished and returns how many were closed.
func (s *StageStore) FinishCurrent(ctx context.Context, motherID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE stages SET finished = TRUE WHERE mother_id = $1 AND finished = FALSE`,
		motherID)
	if err != nil {
		return 0, fmt.Errorf("failed to finish stage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// History returns all stage records of a mother, oldest first.
func (s *StageStore) History(ctx context.Context, motherID int64) ([]*models.Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, stage, created_at, finished
		FROM stages
		WHERE mother_id = $1
		ORDER BY id`, motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage history: %w", err)
	}
	defer rows.Close()

	var records []*models.Stage
	for rows.Next() {
		var r models.Stage
		if err := rows.Scan(&r.ID, &r.MotherID, &r.Stage, &r.CreatedAt, &r.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan stage record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
