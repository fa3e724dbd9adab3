package tasks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/crosspost/internal/models"
)

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// OutcomeKind distinguishes the three terminal results of a publish batch.
type OutcomeKind int

const (
	OutcomeTotalSuccess OutcomeKind = iota
	OutcomeTotalFailure
	OutcomePartial
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTotalSuccess:
		return "success"
	case OutcomeTotalFailure:
		return "failure"
	case OutcomePartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Outcome is a single user-facing confirmation for a batch.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// Summary classifies a batch result and renders its confirmation message.
func Summary(r models.PublishBatchResult) Outcome {
	switch {
	case len(r.Succeeded) == 0:
		return Outcome{Kind: OutcomeTotalFailure, Message: "Publishing failed: " + failureList(r.Failed)}
	case len(r.Failed) == 0:
		return Outcome{Kind: OutcomeTotalSuccess, Message: "Published to " + idList(r.Succeeded)}
	default:
		return Outcome{
			Kind:    OutcomePartial,
			Message: fmt.Sprintf("Published to %s; failed: %s", idList(r.Succeeded), failureList(r.Failed)),
		}
	}
}

func idList(ids []models.PlatformID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func failureList(failed []models.PublishFailure) string {
	if len(failed) == 0 {
		return "no targets"
	}
	parts := make([]string, len(failed))
	for i, f := range failed {
		parts[i] = fmt.Sprintf("%s (%s)", f.Target, f.Reason)
	}
	return strings.Join(parts, ", ")
}
