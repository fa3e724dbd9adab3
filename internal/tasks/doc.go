// Package tasks implements the publish fan-out engine and the activity reconciliation engine.
//
// # Publishing
//
// [PublishEngine.PublishDraft] validates the snapshot before any network call ([shared.ErrNoTargets],
// [shared.ErrEmptyTitle], tag limits, unknown platforms), then starts one goroutine per target and joins them
// with a [sync.WaitGroup]. It always waits for every target to settle. Per-target failures are data in the
// returned [models.PublishBatchResult]; [Summary] classifies the batch as total success, total failure or partial.
//
// An optional [JobRecorder] (repositories.PublishJobRepository) logs each batch.
//
// # Activity
//
// [Reconciler.Reconcile] groups raw records by normalized title, unions platform labels in first-seen order,
// keeps the strictly latest known timestamp and links groups back to local drafts. Sentinel timestamps are
// decoded as unknown by [models.Timestamp] and sort after every dated entry.
//
// [ActivityEngine] wraps fetching, sync triggering and reconciliation. [Page] and [PageCount] slice the result
// for display.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Updates use select with default to prevent blocking.
package tasks
