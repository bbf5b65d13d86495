package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// ErrInvalidToken covers every validation failure: bad format, unknown,
// revoked or expired. Callers get no more detail than that.
var ErrInvalidToken = errors.New("invalid or expired token")

// Store manages token records in the api_tokens table.
type Store struct {
	db    postgres.DBTX
	audit audit.Logger
}

func NewStore(db postgres.DBTX, auditLogger audit.Logger) *Store {
	if auditLogger == nil {
		auditLogger = audit.NewNopLogger()
	}
	return &Store{db: db, audit: auditLogger}
}

// Issue creates a token for a user and returns the plaintext exactly
// once.
func (s *Store) Issue(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*Token, string, error) {
	plaintext, hash, prefix, err := Generate()
	if err != nil {
		return nil, "", err
	}

	t := &Token{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}

	var expires any
	if expiresAt != nil {
		expires = *expiresAt
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.UserID, t.TokenHash, t.TokenPrefix, t.Name, expires, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	s.record(ctx, audit.EventTypeTokenCreate, audit.EventStatusSuccess, t)
	return t, plaintext, nil
}

// Validate resolves a presented token to its record. Revoked and
// expired tokens fail; a successful lookup stamps last_used_at.
func (s *Store) Validate(ctx context.Context, plaintext string) (*Token, error) {
	if err := CheckFormat(plaintext); err != nil {
		s.recordFailure(ctx, "bad format")
		return nil, ErrInvalidToken
	}

	t := &Token{}
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name,
		       expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE token_hash = $1`,
		Hash(plaintext),
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
		&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.recordFailure(ctx, "unknown token")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if revokedAt.Valid {
		s.recordFailure(ctx, "revoked token")
		return nil, ErrInvalidToken
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
		if expiresAt.Time.Before(time.Now()) {
			s.recordFailure(ctx, "expired token")
			return nil, ErrInvalidToken
		}
	}
	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`,
		time.Now().UTC(), t.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to stamp token use: %w", err)
	}
	return t, nil
}

// Revoke disables a token. Revoking an already-revoked token is a
// no-op that reports ErrInvalidToken.
func (s *Store) Revoke(ctx context.Context, tokenID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	if n == 0 {
		return ErrInvalidToken
	}

	s.record(ctx, audit.EventTypeTokenRevoke, audit.EventStatusSuccess, &Token{ID: tokenID})
	return nil
}

// ListForUser returns a user's tokens newest first, revoked included.
func (s *Store) ListForUser(ctx context.Context, userID int64) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name,
		       expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t := &Token{}
		var expiresAt, lastUsedAt, revokedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
			&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		if expiresAt.Valid {
			t.ExpiresAt = &expiresAt.Time
		}
		if lastUsedAt.Valid {
			t.LastUsedAt = &lastUsedAt.Time
		}
		if revokedAt.Valid {
			t.RevokedAt = &revokedAt.Time
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *Store) record(ctx context.Context, eventType audit.EventType, status audit.EventStatus, t *Token) {
	// Best effort; an unavailable audit sink must not block auth.
	event := &audit.Event{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Status:       status,
		ResourceType: audit.ResourceTypeToken,
		ResourceID:   strconv.FormatInt(t.ID, 10),
	}
	if t.UserID != 0 {
		event.UserID = &t.UserID
	}
	_ = s.audit.Log(ctx, event)
}

func (s *Store) recordFailure(ctx context.Context, reason string) {
	_ = s.audit.Log(ctx, &audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventTypeTokenValidateFail,
		Status:    audit.EventStatusFailure,
		Metadata:  map[string]string{"reason": reason},
	})
}
