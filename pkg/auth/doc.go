// Package auth issues and validates the opaque API tokens operators use
// against the HTTP surface.
//
// Tokens are random, carry a "crm_" prefix for identification, and are
// stored as a SHA256 hash. Validation resolves a token to the owning
// user id; loading the user record stays with the caller so this
// package does not touch the domain schema.
package auth
