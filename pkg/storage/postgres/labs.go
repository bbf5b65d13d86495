package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kzcare/crm/pkg/models"
)

// LaboratoryStore persists partner labs and their Telegram-reachable
// managers.
type LaboratoryStore struct {
	db DBTX
}

func NewLaboratoryStore(db DBTX) *LaboratoryStore {
	return &LaboratoryStore{db: db}
}

func (s *LaboratoryStore) WithTx(tx *sql.Tx) *LaboratoryStore {
	return &LaboratoryStore{db: tx}
}

// Create inserts lab and fills in its ID.
func (s *LaboratoryStore) Create(ctx context.Context, lab *models.Laboratory) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO laboratories (mother_id, name)
		VALUES ($1, $2)
		RETURNING id`,
		lab.MotherID, lab.Name,
	).Scan(&lab.ID)
	if err != nil {
		return fmt.Errorf("failed to create laboratory: %w", err)
	}
	return nil
}

// ForMother returns the labs a mother is booked with.
func (s *LaboratoryStore) ForMother(ctx context.Context, motherID int64) ([]*models.Laboratory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mother_id, name FROM laboratories WHERE mother_id = $1 ORDER BY id`,
		motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list laboratories: %w", err)
	}
	defer rows.Close()

	var labs []*models.Laboratory
	for rows.Next() {
		var lab models.Laboratory
		if err := rows.Scan(&lab.ID, &lab.MotherID, &lab.Name); err != nil {
			return nil, fmt.Errorf("failed to scan laboratory: %w", err)
		}
		labs = append(labs, &lab)
	}
	return labs, rows.Err()
}

// AddManager inserts m and fills in its ID.
func (s *LaboratoryStore) AddManager(ctx context.Context, m *models.LaboratoryManager) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO laboratory_managers (laboratory_id, name, telegram_id)
		VALUES ($1, $2, $3)
		RETURNING id`,
		m.LaboratoryID, m.Name, m.TelegramID,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to add laboratory manager: %w", err)
	}
	return nil
}

// Managers returns the managers of a lab.
func (s *LaboratoryStore) Managers(ctx context.Context, laboratoryID int64) ([]*models.LaboratoryManager, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, laboratory_id, name, telegram_id
		FROM laboratory_managers
		WHERE laboratory_id = $1
		ORDER BY id`, laboratoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list laboratory managers: %w", err)
	}
	defer rows.Close()
	return scanManagers(rows)
}

// ManagerByName looks a manager up by display name, or ErrNotFound.
// The Telegram bot resolves chat registrations through this.
func (s *LaboratoryStore) ManagerByName(ctx context.Context, name string) (*models.LaboratoryManager, error) {
	var m models.LaboratoryManager
	err := s.db.QueryRowContext(ctx, `
		SELECT id, laboratory_id, name, telegram_id
		FROM laboratory_managers
		WHERE name = $1
		LIMIT 1`, name,
	).Scan(&m.ID, &m.LaboratoryID, &m.Name, &m.TelegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load laboratory manager: %w", err)
	}
	return &m, nil
}

// ManagersWithChat returns every manager with a registered Telegram chat.
func (s *LaboratoryStore) ManagersWithChat(ctx context.Context) ([]*models.LaboratoryManager, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, laboratory_id, name, telegram_id
		FROM laboratory_managers
		WHERE telegram_id <> ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered managers: %w", err)
	}
	defer rows.Close()
	return scanManagers(rows)
}

// RegisterManagerChat stores the Telegram chat id a manager wrote from.
func (s *LaboratoryStore) RegisterManagerChat(ctx context.Context, managerID int64, telegramID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE laboratory_managers SET telegram_id = $1 WHERE id = $2`,
		telegramID, managerID)
	if err != nil {
		return fmt.Errorf("failed to register manager chat: %w", err)
	}
	return requireRowAffected(result)
}

func scanManagers(rows *sql.Rows) ([]*models.LaboratoryManager, error) {
	var managers []*models.LaboratoryManager
	for rows.Next() {
		var m models.LaboratoryManager
		if err := rows.Scan(&m.ID, &m.LaboratoryID, &m.Name, &m.TelegramID); err != nil {
			return nil, fmt.Errorf("failed to scan laboratory manager: %w", err)
		}
		managers = append(managers, &m)
	}
	return managers, rows.Err()
}
