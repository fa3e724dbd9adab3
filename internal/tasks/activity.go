package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

// DefaultActivityLimit is used when no limit is configured.
const DefaultActivityLimit = 20

// ActivityOptions configures an [ActivityEngine].
type ActivityOptions struct {
	Logger *log.Logger
	Limit  int
	// Settle is how long Refresh waits between triggering a sync and re-fetching.
	Settle time.Duration
}

// ActivityEngine fetches activity records and reconciles them into a timeline.
type ActivityEngine struct {
	client     services.ActivityClient
	reconciler *Reconciler
	logger     *log.Logger
	limit      int
	settle     time.Duration
}

// NewActivityEngine creates an engine over client.
func NewActivityEngine(client services.ActivityClient, reconciler *Reconciler, opts ActivityOptions) *ActivityEngine {
	if opts.Limit <= 0 {
		opts.Limit = DefaultActivityLimit
	}
	return &ActivityEngine{
		client:     client,
		reconciler: reconciler,
		logger:     shared.WithLogger(opts.Logger, "component", "activity"),
		limit:      opts.Limit,
		settle:     opts.Settle,
	}
}

// Timeline fetches the latest records and returns the reconciled, ordered timeline.
func (e *ActivityEngine) Timeline(ctx context.Context, progress chan<- ProgressUpdate) ([]models.TimelineEntry, error) {
	if e.client == nil {
		return nil, fmt.Errorf("%w: activity client not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, fetchActivityUpdate(e.limit))
	records, err := e.client.Activity(ctx, e.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity: %w", err)
	}

	entries := e.reconciler.Reconcile(records)
	e.logger.Debug("reconciled", "records", len(records), "entries", len(entries))
	sendProgress(progress, reconciledUpdate(len(records), len(entries)))
	return entries, nil
}

// Sync asks the backend to refresh scope. The refresh runs asynchronously on the backend.
func (e *ActivityEngine) Sync(ctx context.Context, scope string, progress chan<- ProgressUpdate) (services.SyncResponse, error) {
	if e.client == nil {
		return services.SyncResponse{}, fmt.Errorf("%w: activity client not initialized", shared.ErrServiceUnavailable)
	}
	if scope == "" {
		scope = "all"
	}
	sendProgress(progress, syncUpdate(scope))
	resp, err := e.client.TriggerSync(ctx, scope)
	if err != nil {
		return resp, fmt.Errorf("failed to trigger sync: %w", err)
	}
	e.logger.Info("sync requested", "scope", scope, "enqueued", resp.Enqueued)
	return resp, nil
}

// Refresh triggers a sync and then re-fetches the timeline. A failed sync is logged and the
// previously stored activity is still returned.
func (e *ActivityEngine) Refresh(ctx context.Context, scope string, progress chan<- ProgressUpdate) ([]models.TimelineEntry, error) {
	if _, err := e.Sync(ctx, scope, progress); err != nil {
		e.logger.Warn("sync failed, showing stored activity", "error", err)
	} else if e.settle > 0 {
		select {
		case <-time.After(e.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.Timeline(ctx, progress)
}
