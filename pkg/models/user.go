package models

import "time"

// User is a staff account. Stage classifies which pipeline phase the user
// operates; the assignment service only considers active staff whose stage
// matches the requested one. Timezone is an IANA zone name used purely for
// display conversion, never for business logic.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Stage       StageName `json:"stage"`
	Timezone    string    `json:"timezone"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
