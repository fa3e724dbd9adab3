// Package editor provides the editing session that owns a draft's snapshot, save status and targets.
//
// Edits to the title, body and tag list each pass through their own debouncer; cover image and target
// selection share a fourth. Whenever a stabilized value differs from the last one seen, the session hands a
// fresh snapshot to the draft store, which applies the ready gate and write coalescing.
package editor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crosspost/internal/debounce"
	"github.com/desertthunder/crosspost/internal/drafts"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/tasks"
)

// DefaultAutosaveDelay is the idle period used when none is configured.
const DefaultAutosaveDelay = time.Second

// Publisher fans a snapshot out to its targets. [tasks.PublishEngine] implements it.
type Publisher interface {
	PublishDraft(
		ctx context.Context,
		draftID string,
		snapshot models.DraftSnapshot,
		targets models.TargetSet,
		progress chan<- tasks.ProgressUpdate,
	) (models.PublishBatchResult, error)
}

type meta struct {
	cover   string
	targets models.TargetSet
}

// Session is the single owner of one draft's editable state.
type Session struct {
	store     *drafts.Store
	publisher Publisher
	logger    *log.Logger
	maxTags   int

	mu     sync.Mutex
	snap   models.DraftSnapshot
	opened bool
	closed bool

	title *debounce.Debouncer[string]
	body  *debounce.Debouncer[string]
	tags  *debounce.Debouncer[models.Tags]
	meta  *debounce.Debouncer[meta]

	stableTitle string
	stableBody  string
	stableTags  models.Tags
	stableMeta  meta
}

// Options configures a [Session].
type Options struct {
	Delay     time.Duration
	MaxTags   int
	Clock     debounce.Clock
	Publisher Publisher
	Logger    *log.Logger
}

// New creates a session around store. Edits are rejected with [shared.ErrDraftNotReady] until
// [Session.Open] returns, so hydration never overwrites them.
func New(store *drafts.Store, opts Options) *Session {
	if opts.Delay <= 0 {
		opts.Delay = DefaultAutosaveDelay
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = models.DefaultMaxTags
	}
	clock := debounce.WithClock(opts.Clock)

	s := &Session{
		store:     store,
		publisher: opts.Publisher,
		logger:    shared.WithLogger(opts.Logger, "component", "editor", "draft", store.ID()),
		maxTags:   opts.MaxTags,
	}
	s.title = debounce.New(opts.Delay, func(v string) { s.stabilized(func() bool { return s.swapTitle(v) }) }, clock)
	s.body = debounce.New(opts.Delay, func(v string) { s.stabilized(func() bool { return s.swapBody(v) }) }, clock)
	s.tags = debounce.New(opts.Delay, func(v models.Tags) { s.stabilized(func() bool { return s.swapTags(v) }) }, clock)
	s.meta = debounce.New(opts.Delay, func(v meta) { s.stabilized(func() bool { return s.swapMeta(v) }) }, clock)
	return s
}

// Open hydrates the draft and loads it into the session. Load failures leave an empty, editable draft.
func (s *Session) Open(ctx context.Context) models.DraftSnapshot {
	loaded, found := s.store.Hydrate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.snap = loaded.Clone()
	}
	s.opened = true
	s.stableTitle = s.snap.Title
	s.stableBody = s.snap.Body
	s.stableTags = slices.Clone(s.snap.Tags)
	s.stableMeta = meta{cover: s.snap.CoverImageURL, targets: slices.Clone(s.snap.Targets)}
	return s.snap.Clone()
}

// ID returns the draft id.
func (s *Session) ID() string { return s.store.ID() }

// Status returns the draft's save status.
func (s *Session) Status() models.SaveStatus { return s.store.Status() }

// LastError returns the most recent autosave failure.
func (s *Session) LastError() error { return s.store.LastError() }

// Subscribe streams save status changes.
func (s *Session) Subscribe() <-chan drafts.StatusChange { return s.store.Subscribe() }

// Snapshot captures the current field values.
func (s *Session) Snapshot() models.DraftSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func (s *Session) edit(apply func(*models.DraftSnapshot) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionClosed
	}
	if !s.opened {
		s.mu.Unlock()
		return shared.ErrDraftNotReady
	}
	if err := apply(&s.snap); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.store.MarkDirty()
	return nil
}

// SetTitle replaces the title.
func (s *Session) SetTitle(title string) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		d.Title = title
		s.title.Push(title)
		return nil
	})
}

// SetBody replaces the serialized body content.
func (s *Session) SetBody(body string) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		d.Body = body
		s.body.Push(body)
		return nil
	})
}

// SetCover replaces the cover image URL.
func (s *Session) SetCover(url string) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		d.CoverImageURL = url
		s.meta.Push(meta{cover: url, targets: slices.Clone(d.Targets)})
		return nil
	})
}

// SetTargets replaces the selected platforms.
func (s *Session) SetTargets(targets models.TargetSet) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		d.Targets = models.NewTargetSet(targets...)
		s.meta.Push(meta{cover: d.CoverImageURL, targets: slices.Clone(d.Targets)})
		return nil
	})
}

// AddTag appends a tag, rejecting empty, duplicate and over-limit tags.
func (s *Session) AddTag(tag string) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		next, err := d.Tags.Add(tag, s.maxTags)
		if err != nil {
			return err
		}
		d.Tags = next
		s.tags.Push(slices.Clone(next))
		return nil
	})
}

// RemoveTag drops a tag if present.
func (s *Session) RemoveTag(tag string) error {
	return s.edit(func(d *models.DraftSnapshot) error {
		d.Tags = d.Tags.Remove(tag)
		s.tags.Push(slices.Clone(d.Tags))
		return nil
	})
}

func (s *Session) swapTitle(v string) bool {
	changed := v != s.stableTitle
	s.stableTitle = v
	return changed
}

func (s *Session) swapBody(v string) bool {
	changed := v != s.stableBody
	s.stableBody = v
	return changed
}

func (s *Session) swapTags(v models.Tags) bool {
	changed := !slices.Equal(v, s.stableTags)
	s.stableTags = v
	return changed
}

func (s *Session) swapMeta(v meta) bool {
	changed := v.cover != s.stableMeta.cover || !slices.Equal(v.targets, s.stableMeta.targets)
	s.stableMeta = v
	return changed
}

// stabilized runs when one debouncer settles; an autosave is requested only if the settled value changed.
func (s *Session) stabilized(swap func() bool) {
	s.mu.Lock()
	if s.closed || !swap() {
		s.mu.Unlock()
		return
	}
	snap := s.snap.Clone()
	s.mu.Unlock()

	status := s.store.Save(snap)
	s.logger.Debug("autosave requested", "status", status)
}

// SaveNow cancels pending debounces and writes the current snapshot, waiting for the result.
func (s *Session) SaveNow(ctx context.Context) (models.SaveStatus, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.store.Status(), shared.ErrSessionClosed
	}
	s.title.Cancel()
	s.body.Cancel()
	s.tags.Cancel()
	s.meta.Cancel()
	snap := s.snap.Clone()
	s.stableTitle, s.stableBody = snap.Title, snap.Body
	s.stableTags = slices.Clone(snap.Tags)
	s.stableMeta = meta{cover: snap.CoverImageURL, targets: slices.Clone(snap.Targets)}
	s.mu.Unlock()

	return s.store.SaveNow(ctx, snap)
}

// Publish fans the current snapshot out to the selected targets.
func (s *Session) Publish(ctx context.Context, progress chan<- tasks.ProgressUpdate) (models.PublishBatchResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.PublishBatchResult{}, shared.ErrSessionClosed
	}
	snap := s.snap.Clone()
	s.mu.Unlock()

	if s.publisher == nil {
		return models.PublishBatchResult{}, shared.ErrServiceUnavailable
	}
	return s.publisher.PublishDraft(ctx, s.store.ID(), snap, snap.Targets, progress)
}

// Close cancels pending autosaves and detaches the store. In-flight writes finish in the background.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.title.Close()
	s.body.Close()
	s.tags.Close()
	s.meta.Close()
	s.store.Close()
}
