package postgres

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

// GetMigrations returns all domain-schema migrations, in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(150) NOT NULL UNIQUE,
					stage VARCHAR(32) NOT NULL DEFAULT 'primary',
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					is_staff BOOLEAN NOT NULL DEFAULT FALSE,
					is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create mothers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS mothers (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					number VARCHAR(64) NOT NULL DEFAULT '',
					program VARCHAR(255) NOT NULL DEFAULT '',
					residence VARCHAR(255) NOT NULL DEFAULT '',
					height_and_weight VARCHAR(255) NOT NULL DEFAULT '',
					bad_habits VARCHAR(255) NOT NULL DEFAULT '',
					caesarean VARCHAR(255) NOT NULL DEFAULT '',
					children_age VARCHAR(255) NOT NULL DEFAULT '',
					age VARCHAR(64) NOT NULL DEFAULT '',
					citizenship VARCHAR(255) NOT NULL DEFAULT '',
					blood VARCHAR(64) NOT NULL DEFAULT '',
					maried VARCHAR(64) NOT NULL DEFAULT '',
					external_id VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_mothers_external_id ON mothers(external_id);
			`,
		},
		{
			Version:     3,
			Description: "Create stages table",
			SQL: `
				CREATE TABLE IF NOT EXISTS stages (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					stage VARCHAR(32) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					finished BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX idx_stages_mother_id ON stages(mother_id);
				CREATE INDEX idx_stages_current ON stages(stage, finished);
			`,
		},
		{
			Version:     4,
			Description: "Create bans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS bans (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					comment TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					banned BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX idx_bans_mother_id ON bans(mother_id);
			`,
		},
		{
			Version:     5,
			Description: "Create states and planned tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS states (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					condition VARCHAR(32) NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					scheduled_date TIMESTAMP NOT NULL,
					scheduled_time TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					finished BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX idx_states_mother_id ON states(mother_id);

				CREATE TABLE IF NOT EXISTS planned (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					plan VARCHAR(32) NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					scheduled_date TIMESTAMP NOT NULL,
					scheduled_time TIMESTAMP NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					finished BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX idx_planned_mother_id ON planned(mother_id);
			`,
		},
		{
			Version:     6,
			Description: "Create comments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS comments (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					description TEXT NOT NULL DEFAULT '',
					revoked BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_comments_mother_id ON comments(mother_id);
			`,
		},
		{
			Version:     7,
			Description: "Create laboratories and laboratory_managers tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS laboratories (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL
				);

				CREATE TABLE IF NOT EXISTS laboratory_managers (
					id BIGSERIAL PRIMARY KEY,
					laboratory_id BIGINT NOT NULL REFERENCES laboratories(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					telegram_id VARCHAR(64) NOT NULL DEFAULT ''
				);
			`,
		},
		{
			Version:     8,
			Description: "Create documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS documents (
					id BIGSERIAL PRIMARY KEY,
					mother_id BIGINT NOT NULL REFERENCES mothers(id) ON DELETE CASCADE,
					kind VARCHAR(32) NOT NULL,
					name VARCHAR(255) NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					object_key VARCHAR(512) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_documents_mother_id ON documents(mother_id);
			`,
		},
		{
			Version:     9,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(16) NOT NULL,
					name VARCHAR(255) NOT NULL,
					expires_at TIMESTAMP,
					last_used_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					revoked_at TIMESTAMP
				);

				CREATE INDEX idx_api_tokens_user_id ON api_tokens(user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
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
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
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
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
