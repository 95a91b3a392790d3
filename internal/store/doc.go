// Package store persists job attachments and build history in SQLite.
//
// Jobs hold the per-job notifier configuration (topic and templates). Builds
// record each started and completed build so the notifier can find the
// previous meaningful result when deciding whether a success is worth
// announcing.
//
// Schema changes are appended to the migrations list in schema.go and applied
// in place when the database is opened. A database written by a newer build
// is rejected with ErrSchemaMismatch.
package store
