package audit

import (
	"context"
	"strconv"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// LogTransition records a stage transition on a mother.
func LogTransition(ctx context.Context, l Logger, userID *int64, motherID int64, from, to string) error {
	return l.Log(ctx, &Event{
		Timestamp:    time.Now().UTC(),
		EventType:    EventTypeStageMove,
		Status:       EventStatusSuccess,
		UserID:       userID,
		ResourceType: ResourceTypeMother,
		ResourceID:   strconv.FormatInt(motherID, 10),
		Metadata:     map[string]string{"from": from, "to": to},
	})
}

// LogGrant records a record-level permission grant.
func LogGrant(ctx context.Context, l Logger, granteeID int64, codename string, resourceType ResourceType, resourceID int64) error {
	grantee := granteeID
	return l.Log(ctx, &Event{
		Timestamp:    time.Now().UTC(),
		EventType:    EventTypeGrantIssue,
		Status:       EventStatusSuccess,
		UserID:       &grantee,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(resourceID, 10),
		Metadata:     map[string]string{"codename": codename},
	})
}

// LogDenied records a denied access attempt.
func LogDenied(ctx context.Context, l Logger, userID *int64, resourceType ResourceType, resourceID, reason string) error {
	return l.Log(ctx, &Event{
		Timestamp:    time.Now().UTC(),
		EventType:    EventTypeAccessDenied,
		Status:       EventStatusDenied,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Message:      reason,
	})
}

// NopLogger discards every event. Used in tests and when auditing is
// disabled by configuration.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Log(context.Context, *Event) error { return nil }
func (*NopLogger) Close() error                      { return nil }
