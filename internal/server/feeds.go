package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/repositories"
)

// FeedSyncer pulls platform RSS/Atom feeds into the unified posts table.
type FeedSyncer struct {
	posts   *repositories.PostRepository
	parser  *gofeed.Parser
	logger  *log.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewFeedSyncer creates a syncer writing into posts. timeout bounds each feed fetch.
func NewFeedSyncer(posts *repositories.PostRepository, logger *log.Logger, timeout time.Duration) *FeedSyncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedSyncer{
		posts:   posts,
		parser:  gofeed.NewParser(),
		logger:  nilSafe(logger),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue starts one background sync per row with a feed URL and returns the ids it started.
// Nothing is started once the syncer is closed.
func (s *FeedSyncer) Enqueue(rows []platforms.Platform) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	enqueued := []string{}
	if s.closed {
		s.logger.Debug("sync ignored, syncer closed")
		return enqueued
	}
	for _, p := range rows {
		if p.FeedURL == "" {
			s.logger.Debug("no feed configured", "platform", p.ID)
			continue
		}
		enqueued = append(enqueued, string(p.ID))

		s.wg.Add(1)
		go func(p platforms.Platform) {
			defer s.wg.Done()
			if _, err := s.SyncPlatform(s.ctx, p); err != nil {
				s.logger.Warn("feed sync failed", "platform", p.ID, "error", err)
			}
		}(p)
	}
	return enqueued
}

// SyncPlatform fetches p's feed and upserts every item. It returns the number of items stored.
func (s *FeedSyncer) SyncPlatform(ctx context.Context, p platforms.Platform) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(p.FeedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	stored := 0
	for _, item := range feed.Items {
		rec, ok := FeedRecord(string(p.ID), item)
		if !ok {
			continue
		}
		if err := s.posts.Upsert(ctx, rec); err != nil {
			return stored, err
		}
		stored++
	}
	s.logger.Info("feed synced", "platform", p.ID, "items", stored)
	return stored, nil
}

// Wait blocks until every enqueued sync has finished.
func (s *FeedSyncer) Wait() {
	s.wg.Wait()
}

// Close cancels running syncs and waits for them.
func (s *FeedSyncer) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// FeedRecord maps a feed item to a publication row. Items with neither a GUID nor a link are skipped.
func FeedRecord(platform string, item *gofeed.Item) (models.RawActivityRecord, bool) {
	if item == nil {
		return models.RawActivityRecord{}, false
	}
	remoteID := strings.TrimSpace(item.GUID)
	if remoteID == "" {
		remoteID = strings.TrimSpace(item.Link)
	}
	if remoteID == "" {
		return models.RawActivityRecord{}, false
	}

	published := models.None()
	switch {
	case item.PublishedParsed != nil:
		published = models.Some(*item.PublishedParsed)
	case item.UpdatedParsed != nil:
		published = models.Some(*item.UpdatedParsed)
	}

	return models.RawActivityRecord{
		Platform:    platform,
		RemoteID:    remoteID,
		Title:       strings.TrimSpace(item.Title),
		URL:         item.Link,
		Status:      "published",
		PublishedAt: published,
	}, true
}
