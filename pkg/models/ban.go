package models

import "time"

// Ban is a suspension record placed on a mother. Banned stays false while
// the ban is unresolved; resolving it ("out from ban") flips the flag and
// returns the mother to the primary stage. Bans are kept as history and
// never deleted on resolution.
type Ban struct {
	ID        int64     `json:"id"`
	MotherID  int64     `json:"mother_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Banned    bool      `json:"banned"`
}
