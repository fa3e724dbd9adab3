// Package models defines the domain types shared by the editing, publishing and activity packages.
//
// The package contains three groups of types:
//
// 1. Editing: values captured from the editing surface
//   - [DraftSnapshot] : immutable copy of every editable field at one point in time
//   - [Tags] : ordered, unique tag list with a configurable maximum
//   - [TargetSet] : ordered set of [PlatformID] selected for publishing
//   - [SaveStatus] : autosave state owned by the draft store client
//
// 2. Publishing: transient results of one fan-out
//   - [PublishOutcome] : per-target success or failure with a reason
//   - [PublishBatchResult] : aggregate of outcomes, ordered by the requested targets
//
// 3. Activity: remote publication records and their reconciled view
//   - [RawActivityRecord] : one row from the activity endpoint, never mutated
//   - [Timestamp] : tagged optional replacing sentinel dates (zero time, unix epoch)
//   - [TimelineEntry] : display-ready, recomputed on every reconciliation pass
package models
