package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// PostRepository persists one row per (platform, remote_id) publication, the source of the activity endpoint.
type PostRepository struct {
	db     *sql.DB
	selfID string
}

// NewPostRepository creates a PostRepository. selfID names the local draft channel, whose rows take their
// publish targets from the drafts table.
func NewPostRepository(db *sql.DB, selfID string) *PostRepository {
	return &PostRepository{db: db, selfID: selfID}
}

// Upsert inserts or refreshes a publication row. Unknown timestamps are stored as NULL.
func (r *PostRepository) Upsert(ctx context.Context, rec models.RawActivityRecord) error {
	if rec.Platform == "" || rec.RemoteID == "" {
		return fmt.Errorf("%w: post requires platform and remote id", shared.ErrInvalidInput)
	}

	var publishedAt any
	if t, ok := rec.PublishedAt.Get(); ok {
		publishedAt = t
	}

	query := `
		INSERT INTO unified_posts (platform, remote_id, title, url, status, views, reactions, comments, published_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, remote_id) DO UPDATE SET
			title = excluded.title,
			url = CASE WHEN excluded.url = '' THEN unified_posts.url ELSE excluded.url END,
			status = excluded.status,
			views = MAX(unified_posts.views, excluded.views),
			reactions = MAX(unified_posts.reactions, excluded.reactions),
			comments = MAX(unified_posts.comments, excluded.comments),
			published_at = COALESCE(excluded.published_at, unified_posts.published_at),
			last_synced_at = excluded.last_synced_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Platform,
		rec.RemoteID,
		rec.Title,
		rec.URL,
		rec.Status,
		rec.Views,
		rec.Reactions,
		rec.Comments,
		publishedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

// Activity returns up to limit records, newest first; rows without a publish date follow, newest sync first.
func (r *PostRepository) Activity(ctx context.Context, limit int) ([]models.RawActivityRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT p.platform, p.remote_id, p.title, p.url, p.status, p.views, p.reactions, p.comments,
			p.published_at, COALESCE(d.publish_targets, '[]')
		FROM unified_posts p
		LEFT JOIN drafts d ON p.platform = ? AND d.id = p.remote_id
		ORDER BY p.published_at IS NULL, p.published_at DESC, p.last_synced_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, r.selfID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	records := []models.RawActivityRecord{}
	for rows.Next() {
		var (
			rec         models.RawActivityRecord
			publishedAt sql.NullTime
			targets     string
		)
		if err := rows.Scan(
			&rec.Platform, &rec.RemoteID, &rec.Title, &rec.URL, &rec.Status,
			&rec.Views, &rec.Reactions, &rec.Comments, &publishedAt, &targets,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if publishedAt.Valid {
			rec.PublishedAt = models.Some(scanNullTime(publishedAt))
		}
		if err := decodeJSON(targets, &rec.PublishTargets); err != nil {
			return nil, err
		}
		if len(rec.PublishTargets) == 0 {
			rec.PublishTargets = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored publication rows.
func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unified_posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}
