// Package postgres implements the CRM stores on PostgreSQL, with a Redis
// read cache and S3-backed document blobs.
//
// Every store takes a DBTX so the same code runs against the pooled
// *sql.DB and against a *sql.Tx during pipeline transitions. Writes go
// to the primary connection, reads may use a replica.
package postgres
