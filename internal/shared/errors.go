package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Validation errors, reported before any network activity
	ErrNoTargets       = fmt.Errorf("select at least one platform")
	ErrEmptyTitle      = fmt.Errorf("title is required")
	ErrTooManyTags     = fmt.Errorf("too many tags")
	ErrDuplicateTag    = fmt.Errorf("duplicate tag")
	ErrEmptyTag        = fmt.Errorf("empty tag")
	ErrUnknownPlatform = fmt.Errorf("unknown platform")

	// Draft errors
	ErrDraftNotFound  = fmt.Errorf("draft not found")
	ErrDraftNotReady  = fmt.Errorf("draft not ready")
	ErrMissingDraftID = fmt.Errorf("missing draft id")
	ErrSessionClosed  = fmt.Errorf("editing session closed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
