package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/repositories"
	"github.com/desertthunder/crosspost/internal/services"
)

// PublishHook decides whether a publish request to platform succeeds. Returning an error answers 502 with its text.
type PublishHook func(ctx context.Context, platform platforms.Platform, payload services.PublishPayload) error

// Backend serves the draft, publish and dashboard endpoints from SQLite.
type Backend struct {
	drafts   *repositories.DraftRepository
	posts    *repositories.PostRepository
	registry *platforms.Registry
	syncer   *FeedSyncer
	logger   *log.Logger

	token       string
	limiter     *rate.Limiter
	publishHook PublishHook
	uploader    Uploader
	feedTimeout time.Duration
}

// Option configures a [Backend].
type Option func(*Backend)

// WithLogger sets the request and worker logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithToken requires every request to carry "Authorization: Bearer token".
func WithToken(token string) Option {
	return func(b *Backend) { b.token = token }
}

// WithRateLimit caps the request rate. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(b *Backend) {
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithPublishHook installs a hook consulted before a publish request is accepted.
func WithPublishHook(h PublishHook) Option {
	return func(b *Backend) { b.publishHook = h }
}

// WithFeedTimeout bounds each feed fetch made by the sync worker.
func WithFeedTimeout(d time.Duration) Option {
	return func(b *Backend) { b.feedTimeout = d }
}

// NewBackend wires repositories over db. db must already be migrated.
func NewBackend(db *sql.DB, registry *platforms.Registry, opts ...Option) *Backend {
	b := &Backend{registry: registry, feedTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = nilSafe(b.logger)

	selfID := ""
	if id, ok := registry.Self(); ok {
		selfID = string(id)
	}
	b.drafts = repositories.NewDraftRepository(db)
	b.posts = repositories.NewPostRepository(db, selfID)
	b.syncer = NewFeedSyncer(b.posts, b.logger.WithPrefix("sync"), b.feedTimeout)
	return b
}

// Router builds the full route table behind the middleware stack.
func (b *Backend) Router() *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recoverer(b.logger), RequestLogger(b.logger), BearerAuth(b.token), RateLimit(b.limiter))

	router.HandleFunc("GET", "/api/drafts/{id}", b.getDraft)
	router.HandleFunc("PUT", "/api/drafts/{id}", b.putDraft)
	router.HandleFunc("POST", "/api/publish/{platform}", b.publish)
	router.HandleFunc("POST", "/api/upload", b.upload)
	router.HandleFunc("GET", "/api/dashboard/activity", b.activity)
	router.HandleFunc("POST", "/api/dashboard/sync", b.sync)
	router.HandleFunc("GET", "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

// Syncer exposes the background feed worker, e.g. for scheduled syncs.
func (b *Backend) Syncer() *FeedSyncer {
	return b.syncer
}

// Close stops background syncs and waits for them to exit.
func (b *Backend) Close() {
	b.syncer.Close()
}
