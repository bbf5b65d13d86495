package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

// StateStore persists dated workflow notes on mothers.
type StateStore struct {
	db DBTX
}

func NewStateStore(db DBTX) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) WithTx(tx *sql.Tx) *StateStore {
	return &StateStore{db: tx}
}

// Create inserts st and fills in its ID and CreatedAt.
func (s *StateStore) Create(ctx context.Context, st *models.State) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}

	// A zero ScheduledTime means the operator planned a date only.
	var scheduledTime any
	if !st.ScheduledTime.IsZero() {
		scheduledTime = st.ScheduledTime
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO states (mother_id, condition, reason, scheduled_date,
			scheduled_time, created_at, finished)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		st.MotherID, st.Condition, st.Reason, st.ScheduledDate,
		scheduledTime, st.CreatedAt, st.Finished,
	).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to create state: %w", err)
	}
	return nil
}

// Latest returns the newest unfinished state of a mother, or ErrNotFound.
func (s *StateStore) Latest(ctx context.Context, motherID int64) (*models.State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mother_id, condition, reason, scheduled_date,
			scheduled_time, created_at, finished
		FROM states
		WHERE mother_id = $1 AND finished = FALSE
		ORDER BY id DESC
		LIMIT 1`, motherID)
	return scanState(row)
}

// ListForMother returns all states of a mother, oldest first.
func (s *StateStore) ListForMother(ctx context.Context, motherID int64) ([]*models.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, condition, reason, scheduled_date,
			scheduled_time, created_at, finished
		FROM states
		WHERE mother_id = $1
		ORDER BY id`, motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()
	return scanStates(rows)
}

// DueBetween returns unfinished states scheduled inside [from, to).
// The panels use this for the filtered-by-date view modes.
func (s *StateStore) DueBetween(ctx context.Context, from, to time.Time) ([]*models.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, condition, reason, scheduled_date,
			scheduled_time, created_at, finished
		FROM states
		WHERE finished = FALSE AND scheduled_date >= $1 AND scheduled_date < $2
		ORDER BY scheduled_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list due states: %w", err)
	}
	defer rows.Close()
	return scanStates(rows)
}

// Finish closes a state.
func (s *StateStore) Finish(ctx context.Context, stateID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE states SET finished = TRUE WHERE id = $1 AND finished = FALSE`, stateID)
	if err != nil {
		return fmt.Errorf("failed to finish state: %w", err)
	}
	return requireRowAffected(result)
}

func scanState(row *sql.Row) (*models.State, error) {
	var st models.State
	var scheduledTime sql.NullTime
	err := row.Scan(&st.ID, &st.MotherID, &st.Condition, &st.Reason,
		&st.ScheduledDate, &scheduledTime, &st.CreatedAt, &st.Finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan state: %w", err)
	}
	if scheduledTime.Valid {
		st.ScheduledTime = scheduledTime.Time
	}
	return &st, nil
}

func scanStates(rows *sql.Rows) ([]*models.State, error) {
	var states []*models.State
	for rows.Next() {
		var st models.State
		var scheduledTime sql.NullTime
		err := rows.Scan(&st.ID, &st.MotherID, &st.Condition, &st.Reason,
			&st.ScheduledDate, &scheduledTime, &st.CreatedAt, &st.Finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		if scheduledTime.Valid {
			st.ScheduledTime = scheduledTime.Time
		}
		states = append(states, &st)
	}
	return states, rows.Err()
}

// PlannedStore persists scheduled appointments.
type PlannedStore struct {
	db DBTX
}

func NewPlannedStore(db DBTX) *PlannedStore {
	return &PlannedStore{db: db}
}

func (s *PlannedStore) WithTx(tx *sql.Tx) *PlannedStore {
	return &PlannedStore{db: tx}
}

// Create inserts p and fills in its ID and CreatedAt.
func (s *PlannedStore) Create(ctx context.Context, p *models.Planned) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO planned (mother_id, plan, note, scheduled_date,
			scheduled_time, created_at, finished)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.MotherID, p.Plan, p.Note, p.ScheduledDate,
		p.ScheduledTime, p.CreatedAt, p.Finished,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create planned event: %w", err)
	}
	return nil
}

// DueBetween returns unfinished planned events inside [from, to).
func (s *PlannedStore) DueBetween(ctx context.Context, from, to time.Time) ([]*models.Planned, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, plan, note, scheduled_date, scheduled_time,
			created_at, finished
		FROM planned
		WHERE finished = FALSE AND scheduled_date >= $1 AND scheduled_date < $2
		ORDER BY scheduled_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list due planned events: %w", err)
	}
	defer rows.Close()
	return scanPlanned(rows)
}

// OpenMotherIDs returns the distinct mothers with an unfinished plan of
// the given kind.
func (s *PlannedStore) OpenMotherIDs(ctx context.Context, plan models.PlanName) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT mother_id
		FROM planned
		WHERE plan = $1 AND finished = FALSE`, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to list mothers with open plans: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan mother id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListForMother returns all planned events of a mother, oldest first.
func (s *PlannedStore) ListForMother(ctx context.Context, motherID int64) ([]*models.Planned, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, plan, note, scheduled_date, scheduled_time,
			created_at, finished
		FROM planned
		WHERE mother_id = $1
		ORDER BY id`, motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list planned events: %w", err)
	}
	defer rows.Close()
	return scanPlanned(rows)
}

// Finish closes a planned event.
func (s *PlannedStore) Finish(ctx context.Context, plannedID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE planned SET finished = TRUE WHERE id = $1 AND finished = FALSE`, plannedID)
	if err != nil {
		return fmt.Errorf("failed to finish planned event: %w", err)
	}
	return requireRowAffected(result)
}

func scanPlanned(rows *sql.Rows) ([]*models.Planned, error) {
	var events []*models.Planned
	for rows.Next() {
		var p models.Planned
		err := rows.Scan(&p.ID, &p.MotherID, &p.Plan, &p.Note,
			&p.ScheduledDate, &p.ScheduledTime, &p.CreatedAt, &p.Finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan planned event: %w", err)
		}
		events = append(events, &p)
	}
	return events, rows.Err()
}
