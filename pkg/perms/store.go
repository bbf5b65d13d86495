package perms

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the store can run
// inside a caller's transaction (stage transitions grant permissions as
// part of one atomic write).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store persists permission definitions and grants.
type Store struct {
	db DBTX
}

// NewStore creates a permission store over a database or transaction.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// EnsurePermission returns the permission definition for a codename,
// creating it if it does not exist yet. Creation is idempotent: repeated
// calls with the same codename return the same row.
func (s *Store) EnsurePermission(ctx context.Context, cn Codename) (*Permission, error) {
	codename := cn.String()

	perm := &Permission{Codename: codename, Name: cn.Label(), Model: cn.Model}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, codename, name, model FROM permissions WHERE codename = $1`,
		codename,
	).Scan(&perm.ID, &perm.Codename, &perm.Name, &perm.Model)
	if err == nil {
		return perm, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up permission %q: %w", codename, err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO permissions (codename, name, model) VALUES ($1, $2, $3) RETURNING id`,
		codename, cn.Label(), cn.Model,
	).Scan(&perm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission %q: %w", codename, err)
	}
	return perm, nil
}

// Grant assigns a record-level permission to a user for one object.
// Granting the same triple twice is a no-op.
func (s *Store) Grant(ctx context.Context, permissionID, userID int64, objectType string, objectID int64) error {
	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM object_grants
		 WHERE permission_id = $1 AND user_id = $2 AND object_type = $3 AND object_id = $4`,
		permissionID, userID, objectType, objectID,
	).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up grant: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO object_grants (permission_id, user_id, object_type, object_id, granted_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		permissionID, userID, objectType, objectID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// Revoke removes a record-level grant. Revocation only ever happens as an
// explicit admin action, never automatically.
func (s *Store) Revoke(ctx context.Context, permissionID, userID int64, objectType string, objectID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM object_grants
		 WHERE permission_id = $1 AND user_id = $2 AND object_type = $3 AND object_id = $4`,
		permissionID, userID, objectType, objectID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	return nil
}

// HasObjectGrant reports whether a user holds the record-level permission
// identified by codename on the given object.
func (s *Store) HasObjectGrant(ctx context.Context, userID int64, codename, objectType string, objectID int64) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT og.id
		 FROM object_grants og
		 JOIN permissions p ON p.id = og.permission_id
		 WHERE og.user_id = $1 AND p.codename = $2 AND og.object_type = $3 AND og.object_id = $4`,
		userID, codename, objectType, objectID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return true, nil
}

// GrantedObjectIDs returns the ids of all objects of a type the user holds
// any record-level grant on. The list feeds the existence-based list
// access decision and panel queryset scoping.
func (s *Store) GrantedObjectIDs(ctx context.Context, userID int64, objectType string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT object_id FROM object_grants WHERE user_id = $1 AND object_type = $2`,
		userID, objectType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list granted objects: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GrantCountsByUser returns how many objects of a type each user currently
// holds grants on. Used by the least-loaded assignment strategy.
func (s *Store) GrantCountsByUser(ctx context.Context, objectType string) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, COUNT(DISTINCT object_id)
		 FROM object_grants WHERE object_type = $1 GROUP BY user_id`,
		objectType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count grants: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var userID int64
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		counts[userID] = n
	}
	return counts, rows.Err()
}

// GrantModelPerm assigns a base model-level permission such as
// "mothers.view_ban" to a user.
func (s *Store) GrantModelPerm(ctx context.Context, userID int64, perm string) error {
	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM model_perms WHERE user_id = $1 AND perm = $2`,
		userID, perm,
	).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up model perm: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_perms (user_id, perm) VALUES ($1, $2)`,
		userID, perm,
	)
	if err != nil {
		return fmt.Errorf("failed to grant model perm: %w", err)
	}
	return nil
}

// HasModelPerm reports whether the user holds a base model-level permission.
func (s *Store) HasModelPerm(ctx context.Context, userID int64, perm string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM model_perms WHERE user_id = $1 AND perm = $2`,
		userID, perm,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check model perm: %w", err)
	}
	return true, nil
}
