package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

// CommentStore persists revocation comments. A mother with a revoked
// comment disappears from the operational panels.
type CommentStore struct {
	db DBTX
}

func NewCommentStore(db DBTX) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) WithTx(tx *sql.Tx) *CommentStore {
	return &CommentStore{db: tx}
}

// Create inserts c and fills in its ID and CreatedAt.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (mother_id, description, revoked, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.MotherID, c.Description, c.Revoked, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// IsRevoked reports whether a mother carries any revoked comment.
func (s *CommentStore) IsRevoked(ctx context.Context, motherID int64) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM comments WHERE mother_id = $1 AND revoked = TRUE)`,
		motherID,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return revoked, nil
}

// SetRevoked flips the revoked flag on every comment of a mother.
// Returning a revoked mother to work clears all her revocation marks.
func (s *CommentStore) SetRevoked(ctx context.Context, motherID int64, revoked bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE comments SET revoked = $1 WHERE mother_id = $2`, revoked, motherID)
	if err != nil {
		return fmt.Errorf("failed to update revocation: %w", err)
	}
	return nil
}

// ListForMother returns all comments of a mother, oldest first.
func (s *CommentStore) ListForMother(ctx context.Context, motherID int64) ([]*models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mother_id, description, revoked, created_at
		FROM comments
		WHERE mother_id = $1
		ORDER BY id`, motherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.MotherID, &c.Description, &c.Revoked, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}
