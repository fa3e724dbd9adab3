// Package repositories implements SQLite persistence for the local backend.
//
// The backend stands in for the hosted API during development: drafts written by editing sessions,
// one row per platform publication for the activity dashboard, and a log of publish fan-outs.
//
// Key Implementations:
//   - [DraftRepository] : Draft storage keyed by the caller-chosen draft id
//   - [PostRepository] : Per-platform publication rows, joined with drafts for the self channel
//   - [PublishJobRepository] : Publish batch history; satisfies tasks.JobRecorder
//
// Tags, targets and batch outcomes are stored as JSON arrays in TEXT columns.
package repositories
