// Package storage holds the shared storage configuration for the CRM
// backend: the PostgreSQL primary/replica pool, the Redis cache and the
// S3 bucket documents are uploaded to.
//
// The concrete stores live in the postgres subpackage. Everything here
// is plain configuration so that binaries can build a Config from the
// environment and hand it down.
package storage
