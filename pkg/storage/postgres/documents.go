package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

// DocumentStore persists document metadata. The file bodies live in the
// blob store under Document.ObjectKey.
type DocumentStore struct {
	db DBTX
}

func NewDocumentStore(db DBTX) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) WithTx(tx *sql.Tx) *DocumentStore {
	return &DocumentStore{db: tx}
}

// Create inserts d and fills in its ID and CreatedAt.
func (s *DocumentStore) Create(ctx context.Context, d *models.Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (mother_id, kind, name, note, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		d.MotherID, d.Kind, d.Name, d.Note, d.ObjectKey, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID returns the document with the given id, or ErrNotFound.
func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mother_id, kind, name, note, object_key, created_at
		FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.MotherID, &d.Kind, &d.Name, &d.Note, &d.ObjectKey, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &d, nil
}

// ListForMother returns a mother's documents, optionally filtered by kind.
func (s *DocumentStore) ListForMother(ctx context.Context, motherID int64, kind models.DocumentKind) ([]*models.Document, error) {
	query := `
		SELECT id, mother_id, kind, name, note, object_key, created_at
		FROM documents WHERE mother_id = $1`
	args := []any{motherID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var d models.Document
		err := rows.Scan(&d.ID, &d.MotherID, &d.Kind, &d.Name, &d.Note, &d.ObjectKey, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// Delete removes the metadata row. The caller is responsible for the blob.
func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireRowAffected(result)
}
