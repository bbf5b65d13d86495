package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

const userColumns = `id, username, stage, timezone, is_staff, is_superuser, is_active, created_at`

// UserStore persists staff accounts. It also serves as the candidate
// source for the assignment service.
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

// Create inserts u and fills in its ID and CreatedAt.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, stage, timezone, is_staff, is_superuser, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		u.Username, u.Stage, u.Timezone, u.IsStaff, u.IsSuperuser, u.IsActive, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given id, or ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername returns the user with the given username, or ErrNotFound.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// ActiveStaffAtStage returns the active staff users working the given
// stage. Superusers are not excluded; being staff is what matters.
func (s *UserStore) ActiveStaffAtStage(ctx context.Context, stage models.StageName) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE stage = $1 AND is_staff = TRUE AND is_active = TRUE
		ORDER BY id`, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff at stage: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Username, &u.Stage, &u.Timezone,
			&u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetStage moves a user to a different pipeline stage.
func (s *UserStore) SetStage(ctx context.Context, userID int64, stage models.StageName) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q", stage)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET stage = $1 WHERE id = $2`, stage, userID)
	if err != nil {
		return fmt.Errorf("failed to set user stage: %w", err)
	}
	return requireRowAffected(result)
}

// SetTimezone changes the display timezone of a user.
func (s *UserStore) SetTimezone(ctx context.Context, userID int64, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET timezone = $1 WHERE id = $2`, tz, userID)
	if err != nil {
		return fmt.Errorf("failed to set user timezone: %w", err)
	}
	return requireRowAffected(result)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Stage, &u.Timezone,
		&u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
