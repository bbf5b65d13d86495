package models

import "time"

// ConditionName classifies the current working condition of a mother.
type ConditionName string

const (
	ConditionCreated         ConditionName = "created"
	ConditionWorking         ConditionName = "working"
	ConditionNoBaby          ConditionName = "no baby"
	ConditionWroteInWhatsapp ConditionName = "WWW"
)

// Display returns the operator-facing label for a condition.
func (c ConditionName) Display() string {
	switch c {
	case ConditionCreated:
		return "recently created"
	case ConditionWorking:
		return "we are working"
	case ConditionNoBaby:
		return "has not baby"
	case ConditionWroteInWhatsapp:
		return "wrote WhatsApp, waiting the answer"
	}
	return string(c)
}

// State is a dated workflow note on a mother. ScheduledDate is required;
// ScheduledTime may be zero when the operator planned a date only.
// Both are stored in UTC.
type State struct {
	ID            int64         `json:"id"`
	MotherID      int64         `json:"mother_id"`
	Condition     ConditionName `json:"condition"`
	Reason        string        `json:"reason,omitempty"`
	ScheduledDate time.Time     `json:"scheduled_date"`
	ScheduledTime time.Time     `json:"scheduled_time,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	Finished      bool          `json:"finished"`
}

// PlanName identifies what has been planned for a mother.
type PlanName string

const (
	PlanLaboratory PlanName = "laboratory"
)

// Planned is a scheduled appointment, currently always a laboratory visit.
type Planned struct {
	ID            int64     `json:"id"`
	MotherID      int64     `json:"mother_id"`
	Plan          PlanName  `json:"plan"`
	Note          string    `json:"note,omitempty"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ScheduledTime time.Time `json:"scheduled_time"`
	CreatedAt     time.Time `json:"created_at"`
	Finished      bool      `json:"finished"`
}

// Laboratory is a partner lab a mother can be sent to.
type Laboratory struct {
	ID       int64  `json:"id"`
	MotherID int64  `json:"mother_id"`
	Name     string `json:"name"`
}

// LaboratoryManager is a lab contact reachable over Telegram.
type LaboratoryManager struct {
	ID           int64  `json:"id"`
	LaboratoryID int64  `json:"laboratory_id"`
	Name         string `json:"name"`
	TelegramID   string `json:"telegram_id"`
}

// DocumentKind groups the paperwork collected for a mother.
type DocumentKind string

const (
	DocumentMain       DocumentKind = "main_docs"
	DocumentAcquire    DocumentKind = "acquire_docs"
	DocumentAdditional DocumentKind = "additional_docs"
)

// Document is one collected paper. The file body lives in blob storage
// under ObjectKey; only metadata is kept in the database.
type Document struct {
	ID        int64        `json:"id"`
	MotherID  int64        `json:"mother_id"`
	Kind      DocumentKind `json:"kind"`
	Name      string       `json:"name"`
	Note      string       `json:"note,omitempty"`
	ObjectKey string       `json:"object_key"`
	CreatedAt time.Time    `json:"created_at"`
}
