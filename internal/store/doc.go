// Package store persists rendered clip artifacts and per-item failure
// records in SQLite.
//
// The artifacts table is keyed by message id and doubles as the batch
// de-duplication set: an id with an artifact is never rendered again unless
// the artifact is deleted explicitly. Writes retry briefly on SQLITE_BUSY so
// the CLI, the API server, and the poller can share one database file.
package store
