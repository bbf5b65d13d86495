// Package assignment picks a staff manager for a record entering a
// pipeline stage and grants them the record-level permission for it.
//
// The selection policy is pluggable: random (the historical behavior),
// round-robin, or least-loaded. Selection only ever considers active
// staff classified at the requested stage; an explicitly requested user
// is honored only when their stage matches.
package assignment
