package tasks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crosspost/internal/content"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

// JobRecorder persists a log entry per publish batch.
type JobRecorder interface {
	RecordPublishJob(ctx context.Context, job models.PublishJob) error
}

// PublishOptions configures a [PublishEngine].
type PublishOptions struct {
	Logger  *log.Logger
	Jobs    JobRecorder   // optional
	Timeout time.Duration // per-target request timeout, 0 means the transport default
	MaxTags int
}

// PublishEngine issues one publish request per target concurrently and aggregates the outcomes.
type PublishEngine struct {
	client   services.PublishClient
	registry *platforms.Registry
	logger   *log.Logger
	jobs     JobRecorder
	timeout  time.Duration
	maxTags  int
	now      func() time.Time
}

// NewPublishEngine creates a fan-out engine that resolves targets through registry.
func NewPublishEngine(client services.PublishClient, registry *platforms.Registry, opts PublishOptions) *PublishEngine {
	return &PublishEngine{
		client:   client,
		registry: registry,
		logger:   shared.WithLogger(opts.Logger, "component", "publish"),
		jobs:     opts.Jobs,
		timeout:  opts.Timeout,
		maxTags:  opts.MaxTags,
		now:      time.Now,
	}
}

// Validate checks every precondition that must hold before any request is sent.
func (e *PublishEngine) Validate(snapshot models.DraftSnapshot, targets models.TargetSet) ([]platforms.Platform, error) {
	targets = models.NewTargetSet(targets...)
	if len(targets) == 0 {
		return nil, shared.ErrNoTargets
	}
	if strings.TrimSpace(snapshot.Title) == "" {
		return nil, shared.ErrEmptyTitle
	}
	if _, err := models.ParseTags(snapshot.Tags, e.maxTags); err != nil {
		return nil, err
	}
	return e.registry.Resolve(targets)
}

// Publish implements the editor's publisher without a draft id or progress channel.
func (e *PublishEngine) Publish(ctx context.Context, snapshot models.DraftSnapshot, targets models.TargetSet) (models.PublishBatchResult, error) {
	return e.PublishDraft(ctx, "", snapshot, targets, nil)
}

// PublishDraft validates, fans out to every target, waits for all of them to settle and returns the aggregate.
//
// Only validation failures are returned as errors. Per-target failures are reported in the result;
// one target's failure or latency never cancels another's request.
func (e *PublishEngine) PublishDraft(
	ctx context.Context,
	draftID string,
	snapshot models.DraftSnapshot,
	targets models.TargetSet,
	progress chan<- ProgressUpdate,
) (models.PublishBatchResult, error) {
	resolved, err := e.Validate(snapshot, targets)
	if err != nil {
		return models.PublishBatchResult{}, err
	}
	targets = models.NewTargetSet(targets...)

	started := e.now()
	payload := NewPayload(snapshot)
	total := len(resolved)
	sendProgress(progress, validatedUpdate(total))

	results := make(chan models.PublishOutcome, total)
	var wg sync.WaitGroup
	for _, p := range resolved {
		wg.Add(1)
		go func(p platforms.Platform) {
			defer wg.Done()
			results <- e.publishOne(ctx, p, payload)
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[models.PlatformID]models.PublishOutcome, total)
	completed := 0
	for o := range results {
		completed++
		outcomes[o.Target] = o
		sendProgress(progress, publishedUpdate(completed, total, e.registry.Label(string(o.Target)), o))
	}

	result := models.NewPublishBatchResult(targets, outcomes)
	summary := Summary(result)
	e.logger.Info("publish batch complete", "outcome", summary.Kind, "succeeded", len(result.Succeeded), "failed", len(result.Failed))

	if e.jobs != nil {
		job := models.PublishJob{
			ID:          shared.GenerateID(),
			DraftID:     draftID,
			Title:       snapshot.Title,
			Targets:     targets,
			Result:      result,
			StartedAt:   started.UTC(),
			CompletedAt: e.now().UTC(),
		}
		if err := e.jobs.RecordPublishJob(context.WithoutCancel(ctx), job); err != nil {
			e.logger.Warn("failed to record publish job", "error", err)
		}
	}
	return result, nil
}

func (e *PublishEngine) publishOne(ctx context.Context, p platforms.Platform, payload services.PublishPayload) models.PublishOutcome {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	logger := e.logger.With("platform", p.ID)
	if err := e.client.Publish(ctx, p.Endpoint, payload); err != nil {
		reason := services.FailureReason(err)
		logger.Warn("publish failed", "reason", reason)
		return models.PublishOutcome{Target: p.ID, Reason: reason}
	}
	logger.Debug("published")
	return models.PublishOutcome{Target: p.ID, OK: true}
}

// NewPayload builds the request body for snapshot. The blog URL is the first https link in the body.
func NewPayload(snapshot models.DraftSnapshot) services.PublishPayload {
	return services.PublishPayload{
		Title:      strings.TrimSpace(snapshot.Title),
		Content:    snapshot.Body,
		CoverImage: snapshot.CoverImageURL,
		Tags:       append([]string(nil), snapshot.Tags...),
		BlogURL:    content.FirstLink(snapshot.Body),
	}
}
