// Package middleware provides HTTP middleware for authentication and
// rate limiting.
//
// AuthMiddleware resolves the Bearer token of a request to a user
// record and stores it on the context; handlers read it back with
// UserFromRequest. Rate limiting comes in two flavors: an in-memory
// token bucket for single-instance deployments and a Redis-backed one
// shared across instances.
package middleware
