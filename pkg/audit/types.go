package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Pipeline events
	EventTypeMotherCreate  EventType = "mother.create"
	EventTypeMotherUpdate  EventType = "mother.update"
	EventTypeMotherDelete  EventType = "mother.delete"
	EventTypeMotherRevoke  EventType = "mother.revoke"
	EventTypeMotherReturn  EventType = "mother.return"
	EventTypeStageMove     EventType = "stage.move"
	EventTypeBanOpen       EventType = "ban.open"
	EventTypeBanResolve    EventType = "ban.resolve"

	// Authorization events
	EventTypeGrantIssue    EventType = "authz.grant_issue"
	EventTypeGrantRevoke   EventType = "authz.grant_revoke"
	EventTypeAccessDenied  EventType = "authz.access_denied"

	// Authentication events
	EventTypeTokenCreate       EventType = "auth.token_create"
	EventTypeTokenRevoke       EventType = "auth.token_revoke"
	EventTypeTokenValidateFail EventType = "auth.token_validate_fail"

	// Document events
	EventTypeDocumentUpload EventType = "document.upload"
	EventTypeDocumentDelete EventType = "document.delete"

	// Ingestion events
	EventTypeMailIngest EventType = "mail.ingest"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeMother     ResourceType = "mother"
	ResourceTypeBan        ResourceType = "ban"
	ResourceTypeDocument   ResourceType = "document"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypePermission ResourceType = "permission"
	ResourceTypeMessage    ResourceType = "message"
	ResourceTypeToken      ResourceType = "token"
	ResourceTypeEndpoint   ResourceType = "endpoint"
)

// Event is a single audit log entry.
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor; nil UserID means a scheduled job acted on its own.
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	Message      string            `json:"message,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
