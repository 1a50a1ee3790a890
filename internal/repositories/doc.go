// Package repositories implements SQLite persistence for run history.
//
// Key Implementations:
//   - [CloneRunRepository] : one row per clone or seed run, with status and aggregate counts
//   - [CloneResultRepository] : the per-entity results of a run, in emission order
//
// Runs support soft deletes via deleted_at timestamps; deleted runs are excluded from queries.
// The [NextSequence] function atomically increments the per-table counter in a dedicated sequence table.
package repositories
