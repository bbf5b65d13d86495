// Package models defines the core CRM records: the tracked mother, her
// stage history, bans, and the auxiliary workflow records (conditions,
// states, planned events, laboratory visits, documents).
//
// All timestamps are stored in UTC. Conversion to a staff user's display
// timezone happens in the view layer only.
package models
