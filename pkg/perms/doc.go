// Package perms implements the record-level permission model used across
// the admin panels.
//
// A grant is keyed by a structured codename (stage, model, username) and
// scoped to one object instance. The Checker combines base model-level
// permissions, record-level grants, and existence-based list access into a
// single decision procedure that always resolves to a boolean: absence of
// permission means denied, never an error surfaced to the caller.
package perms
