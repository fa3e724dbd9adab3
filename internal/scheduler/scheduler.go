// package scheduler triggers activity syncs on a cron schedule and refreshes the reconciled timeline
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/tasks"
)

const (
	DefaultSpec    = "*/15 * * * *"
	defaultTimeout = 2 * time.Minute
)

// Refresher triggers a sync and returns the re-reconciled timeline. [tasks.ActivityEngine] implements it.
type Refresher interface {
	Refresh(ctx context.Context, scope string, progress chan<- tasks.ProgressUpdate) ([]models.TimelineEntry, error)
}

// Options configures a [Scheduler].
type Options struct {
	Spec      string        // standard 5-field cron spec or descriptor such as "@every 5m"
	Scope     string        // sync scope, "all" when empty
	Timeout   time.Duration // bound on one refresh
	Location  *time.Location
	Logger    *log.Logger
	OnRefresh func(entries []models.TimelineEntry, err error)
}

// Scheduler runs one refresh per cron tick. A tick that fires while the previous refresh is running is skipped.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	refresher Refresher
	opts      Options
	logger    *log.Logger

	mu   sync.Mutex
	runs int
}

// New validates opts.Spec and builds a stopped scheduler whose refreshes end when ctx is done.
func New(ctx context.Context, refresher Refresher, opts Options) (*Scheduler, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Scope == "" {
		opts.Scope = "all"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if _, err := cron.ParseStandard(opts.Spec); err != nil {
		return nil, fmt.Errorf("%w: bad schedule %q: %v", shared.ErrInvalidConfig, opts.Spec, err)
	}

	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		refresher: refresher,
		opts:      opts,
		logger:    shared.WithLogger(opts.Logger, "component", "scheduler"),
	}, nil
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.opts.Spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.opts.Spec, "scope", s.opts.Scope)
	return nil
}

// Stop halts the cron loop and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next reports when the next refresh is due. It is zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs one refresh synchronously, outside the schedule.
func (s *Scheduler) RunNow() ([]models.TimelineEntry, error) {
	return s.refresh()
}

// Runs reports how many refreshes have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) tick() {
	_, _ = s.refresh()
}

func (s *Scheduler) refresh() ([]models.TimelineEntry, error) {
	if err := s.ctx.Err(); err != nil {
		s.logger.Debug("scheduler context is done", "error", err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	entries, err := s.refresher.Refresh(ctx, s.opts.Scope, nil)
	if err != nil {
		s.logger.Warn("scheduled refresh failed", "scope", s.opts.Scope, "error", err)
	} else {
		s.logger.Info("scheduled refresh", "entries", len(entries), "duration", time.Since(start).Round(time.Millisecond))
	}

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	if s.opts.OnRefresh != nil {
		s.opts.OnRefresh(entries, err)
	}
	return entries, err
}
