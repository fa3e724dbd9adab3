// Package drafts implements the autosave client for a single draft.
//
// A [Store] owns the draft's [models.SaveStatus] and moves it through
//
//	idle -> unsaved -> saving -> saved
//	saving -> unsaved (on failure)
//
// At most one write is outstanding per draft. A save requested while a write is in flight replaces any
// previously queued snapshot and is written as soon as the current write settles, so nothing is dropped
// and nothing is sent twice. An edit reported through [Store.MarkDirty] during a write leaves the draft
// unsaved when that write lands, until a snapshot carrying the edit is saved. Write failures never surface as errors from [Store.Save]; they leave the draft
// unsaved and are recorded in [Store.LastError] for the next debounce cycle or manual save to retry.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

const defaultTimeout = 30 * time.Second

// StatusChange is delivered to subscribers after every transition.
type StatusChange struct {
	From models.SaveStatus
	To   models.SaveStatus
	Err  error // set when the transition was caused by a failed write
}

// Store is the save-status state machine for one draft.
type Store struct {
	id      string
	backend services.DraftClient
	logger  *log.Logger
	timeout time.Duration

	mu        sync.Mutex
	status    models.SaveStatus
	ready     bool
	closed    bool
	inflight  bool
	dirty     bool // edited since the snapshot being written or queued was captured
	queued    *models.DraftSnapshot
	lastSaved *models.DraftSnapshot
	lastErr   error
	writes    int
	idle      chan struct{} // closed when no write is in flight
	subs      []chan StatusChange
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTimeout bounds each backend call. A hung request fails that attempt only.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewStore returns an idle, not-yet-ready store for draft id.
func NewStore(id string, backend services.DraftClient, opts ...Option) *Store {
	s := &Store{id: id, backend: backend, timeout: defaultTimeout, status: models.StatusIdle}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = shared.WithLogger(s.logger, "component", "drafts", "draft", id)
	s.idle = make(chan struct{})
	close(s.idle)
	return s
}

// ID returns the draft id.
func (s *Store) ID() string { return s.id }

// Hydrate fetches the stored draft once and opens the ready gate.
//
// A missing draft or a failed fetch yields an empty snapshot; the store is marked ready either way.
// The boolean reports whether stored content was found.
func (s *Store) Hydrate(ctx context.Context) (models.DraftSnapshot, bool) {
	var (
		snap  models.DraftSnapshot
		found bool
	)

	if s.id != "" && s.backend != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		got, err := s.backend.GetDraft(ctx, s.id)
		cancel()
		switch {
		case err == nil:
			snap, found = got, true
		case errors.Is(err, shared.ErrDraftNotFound):
			s.logger.Debug("no stored draft, starting empty")
		default:
			s.logger.Warn("failed to load draft, starting empty", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return snap, found
	}
	s.ready = true
	if found {
		saved := snap.Clone()
		s.lastSaved = &saved
	}
	return snap, found
}

// MarkReady opens the ready gate without fetching, for drafts known to be new.
func (s *Store) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Ready reports whether hydration has finished.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// MarkDirty records an edit that has not been saved yet.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch s.status {
	case models.StatusIdle, models.StatusSaved, models.StatusError:
		s.setStatusLocked(models.StatusUnsaved, nil)
	case models.StatusSaving:
		s.dirty = true
	}
}

// Save requests a write of snapshot and returns the resulting status without waiting for the network.
//
// Before the ready gate opens the request is ignored. A request made while a write is in flight is queued
// and written next, replacing any earlier queued snapshot.
func (s *Store) Save(snapshot models.DraftSnapshot) models.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.status
	}
	if s.id == "" {
		s.lastErr = shared.ErrMissingDraftID
		s.setStatusLocked(models.StatusError, shared.ErrMissingDraftID)
		return s.status
	}
	if !s.ready {
		s.logger.Debug("save ignored, draft not ready")
		return s.status
	}

	snap := snapshot.Clone()
	s.dirty = false
	if s.inflight {
		s.queued = &snap
		return s.status
	}
	if s.lastSaved != nil && s.lastSaved.Equal(snap) && s.status != models.StatusError {
		s.setStatusLocked(models.StatusSaved, nil)
		return s.status
	}

	s.startWriteLocked(snap)
	return s.status
}

func (s *Store) startWriteLocked(snap models.DraftSnapshot) {
	s.inflight = true
	s.writes++
	s.idle = make(chan struct{})
	s.setStatusLocked(models.StatusSaving, nil)
	go s.write(snap)
}

func (s *Store) write(snap models.DraftSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	err := s.backend.PutDraft(ctx, s.id, snap)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("discarding write result after close", "error", err)
		s.finishLocked()
		return
	}

	if err != nil {
		s.lastErr = fmt.Errorf("save draft %s: %w", s.id, err)
		s.logger.Warn("autosave failed", "reason", services.FailureReason(err))
		s.setStatusLocked(models.StatusUnsaved, s.lastErr)
	} else {
		s.lastErr = nil
		s.lastSaved = &snap
		if s.queued == nil {
			s.setStatusLocked(s.settledLocked(), nil)
		}
	}

	if next := s.queued; next != nil {
		s.queued = nil
		if s.lastSaved != nil && s.lastSaved.Equal(*next) && err == nil {
			s.setStatusLocked(s.settledLocked(), nil)
		} else {
			s.inflight = false
			close(s.idle)
			s.startWriteLocked(*next)
			return
		}
	}
	s.finishLocked()
}

// settledLocked is the status after a successful write with nothing left queued.
func (s *Store) settledLocked() models.SaveStatus {
	if s.dirty {
		return models.StatusUnsaved
	}
	return models.StatusSaved
}

func (s *Store) finishLocked() {
	s.inflight = false
	s.queued = nil
	close(s.idle)
}

// Flush waits until no write is in flight or queued and returns the final status.
// The returned error is the last write failure, if the draft is still unsaved, or ctx's error.
func (s *Store) Flush(ctx context.Context) (models.SaveStatus, error) {
	for {
		s.mu.Lock()
		idle := s.idle
		busy := s.inflight
		status, lastErr := s.status, s.lastErr
		s.mu.Unlock()

		if !busy {
			if status == models.StatusUnsaved || status == models.StatusError {
				return status, lastErr
			}
			return status, nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
}

// SaveNow writes snapshot immediately, short-circuiting any debounce, and waits for it to settle.
func (s *Store) SaveNow(ctx context.Context, snapshot models.DraftSnapshot) (models.SaveStatus, error) {
	s.mu.Lock()
	ready, closed := s.ready, s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return s.Status(), shared.ErrSessionClosed
	case s.id == "":
		s.Save(snapshot)
		return s.Status(), shared.ErrMissingDraftID
	case !ready:
		return s.Status(), shared.ErrDraftNotReady
	}

	s.Save(snapshot)
	return s.Flush(ctx)
}

// Status returns the current save status.
func (s *Store) Status() models.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the most recent write failure, cleared by the next successful write.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Writes reports how many writes have been started.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Subscribe returns a channel of status changes. Slow subscribers miss updates rather than block the store.
func (s *Store) Subscribe() <-chan StatusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan StatusChange, 16)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) setStatusLocked(to models.SaveStatus, err error) {
	from := s.status
	if from == to && err == nil {
		return
	}
	s.status = to
	s.logger.Debug("status", "from", from, "to", to)
	change := StatusChange{From: from, To: to, Err: err}
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// Close stops the store. Writes already sent may finish, but their results are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queued = nil
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}
