package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DBLogger writes audit events to the audit_logs table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_logs table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	l := &DBLogger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id BIGINT,
		username VARCHAR(150),
		resource_type VARCHAR(50),
		resource_id VARCHAR(100),
		message TEXT,
		error_message TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	`)
	return err
}

// Log inserts one event.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadata any
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (timestamp, event_type, status, user_id, username,
			resource_type, resource_id, message, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		event.Timestamp, event.EventType, event.Status, event.UserID, event.Username,
		event.ResourceType, event.ResourceID, event.Message, event.ErrorMessage, metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// SearchFilter narrows a Search call.
type SearchFilter struct {
	EventTypes   []EventType
	UserID       *int64
	ResourceType ResourceType
	ResourceID   string
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

// Search returns events matching filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, status, user_id, username,
			resource_type, resource_id, message, error_message, metadata
		FROM audit_logs WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = arg(string(et))
		}
		query += " AND event_type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if filter.UserID != nil {
		query += " AND user_id = " + arg(*filter.UserID)
	}
	if filter.ResourceType != "" {
		query += " AND resource_type = " + arg(string(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		query += " AND resource_id = " + arg(filter.ResourceID)
	}
	if filter.Since != nil {
		query += " AND timestamp >= " + arg(*filter.Since)
	}
	if filter.Until != nil {
		query += " AND timestamp < " + arg(*filter.Until)
	}

	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var userID sql.NullInt64
		var username, resourceType, resourceID, message, errMessage, metadata sql.NullString
		err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status, &userID,
			&username, &resourceType, &resourceID, &message, &errMessage, &metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		e.Username = username.String
		e.ResourceType = ResourceType(resourceType.String)
		e.ResourceID = resourceID.String
		e.Message = message.String
		e.ErrorMessage = errMessage.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close is a no-op; the logger does not own the database handle.
func (l *DBLogger) Close() error {
	return nil
}
