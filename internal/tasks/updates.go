package tasks

import (
	"fmt"

	"github.com/desertthunder/crosspost/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Validate Phase = iota
	PublishTarget
	TriggerSync
	FetchActivity
	Reconcile
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case PublishTarget:
		return "publish_target"
	case TriggerSync:
		return "trigger_sync"
	case FetchActivity:
		return "fetch_activity"
	case Reconcile:
		return "reconcile"
	default:
		return ""
	}
}

func validatedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Validate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Publishing to %d platform(s)...", total),
	}
}

func publishedUpdate(step, total int, label string, outcome models.PublishOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, label)
	if !outcome.OK {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, label, outcome.Reason)
	}
	return ProgressUpdate{
		Phase:   PublishTarget,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    outcome,
	}
}

func syncUpdate(scope string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TriggerSync,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Requesting sync (%s)...", scope),
	}
}

func fetchActivityUpdate(limit int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchActivity,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching up to %d activity records...", limit),
	}
}

func reconciledUpdate(records, entries int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reconciled %d records into %d posts", records, entries),
	}
}
