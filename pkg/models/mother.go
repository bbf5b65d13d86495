package models

import "time"

// Mother is the tracked entity moving through the intake pipeline.
// All demographic fields are free-form; the intake questionnaire arrives
// as unstructured text and is not validated beyond field mapping.
type Mother struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Number          string    `json:"number"`
	Program         string    `json:"program"`
	Residence       string    `json:"residence"`
	HeightAndWeight string    `json:"height_and_weight"`
	BadHabits       string    `json:"bad_habits"`
	Caesarean       string    `json:"caesarean"`
	ChildrenAge     string    `json:"children_age"`
	Age             string    `json:"age"`
	Citizenship     string    `json:"citizenship"`
	Blood           string    `json:"blood"`
	Maried          string    `json:"maried"`
	// ExternalID is the mailbox message id a mother was ingested from.
	// Empty for manually created records. Used to skip already-ingested
	// messages on the next scheduled run.
	ExternalID string    `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Comment is the revocation marker for a mother. A revoked mother
// disappears from the operational panels until explicitly returned.
type Comment struct {
	ID          int64     `json:"id"`
	MotherID    int64     `json:"mother_id"`
	Description string    `json:"description"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}
