package perms

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all permission-model migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					codename VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					model VARCHAR(100) NOT NULL
				);

				CREATE INDEX idx_permissions_model ON permissions(model);
			`,
		},
		{
			Version:     2,
			Description: "Create object_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS object_grants (
					id BIGSERIAL PRIMARY KEY,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					object_type VARCHAR(100) NOT NULL,
					object_id BIGINT NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(permission_id, user_id, object_type, object_id)
				);

				CREATE INDEX idx_object_grants_user_id ON object_grants(user_id);
				CREATE INDEX idx_object_grants_object ON object_grants(object_type, object_id);
			`,
		},
		{
			Version:     3,
			Description: "Create model_perms table",
			SQL: `
				CREATE TABLE IF NOT EXISTS model_perms (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					perm VARCHAR(255) NOT NULL,
					UNIQUE(user_id, perm)
				);

				CREATE INDEX idx_model_perms_user_id ON model_perms(user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS perms_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM perms_migrations WHERE version = $1)`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO perms_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
