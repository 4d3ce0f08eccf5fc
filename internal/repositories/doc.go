// Package repositories implements SQLite persistence for the upload ledger.
//
// Key Implementations:
//   - [UploadRepository] : CRUD over the uploads table with soft deletes
//   - [History] : adapts queue outcomes into ledger rows for [tasks.UploadQueue]
//
// Sequence numbers provide stable, human-readable ordering (e.g., upload #42) independent of UUIDs and creation
// timestamps. The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence
// tables.
package repositories
