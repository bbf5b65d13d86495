package models

import "time"

// StageName identifies a phase of the intake pipeline.
type StageName string

const (
	StageTrash      StageName = "trash"
	StageBan        StageName = "ban"
	StagePrimary    StageName = "primary"
	StageFirstVisit StageName = "first_visit"
)

// Valid reports whether s is one of the known pipeline stages.
func (s StageName) Valid() bool {
	switch s {
	case StageTrash, StageBan, StagePrimary, StageFirstVisit:
		return true
	}
	return false
}

func (s StageName) String() string {
	return string(s)
}

// Display returns the human-readable label for a stage.
func (s StageName) Display() string {
	switch s {
	case StagePrimary:
		return "primary stage"
	case StageFirstVisit:
		return "first visit"
	default:
		return string(s)
	}
}

// Stage is one record of a mother's stage history. A mother accumulates
// stage records over time; only the newest unfinished one is current.
// A record is never deleted, only marked finished when superseded.
type Stage struct {
	ID        int64     `json:"id"`
	MotherID  int64     `json:"mother_id"`
	Stage     StageName `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
	Finished  bool      `json:"finished"`
}
