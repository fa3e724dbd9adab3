package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// DraftRepository persists drafts written through the draft endpoint.
type DraftRepository struct {
	db *sql.DB
}

// NewDraftRepository creates a new DraftRepository with the given database connection
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Get returns the draft with id, or [shared.ErrDraftNotFound].
func (r *DraftRepository) Get(ctx context.Context, id string) (*models.Draft, error) {
	query := `
		SELECT id, title, content, cover_image, tags, publish_targets, is_published, last_saved_at, created_at
		FROM drafts
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Save inserts or replaces the draft's content, stamping LastSavedAt (and CreatedAt on first save).
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		return shared.ErrMissingDraftID
	}
	tags, err := encodeJSON(nonNil(draft.Snapshot.Tags))
	if err != nil {
		return err
	}
	targets, err := encodeJSON(draft.Snapshot.Targets.Strings())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO drafts (id, title, content, cover_image, tags, publish_targets, is_published, last_saved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			cover_image = excluded.cover_image,
			tags = excluded.tags,
			publish_targets = excluded.publish_targets,
			is_published = excluded.is_published,
			last_saved_at = excluded.last_saved_at
	`
	_, err = r.db.ExecContext(ctx, query,
		draft.ID,
		draft.Snapshot.Title,
		draft.Snapshot.Body,
		draft.Snapshot.CoverImageURL,
		tags,
		targets,
		draft.IsPublished,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	draft.LastSavedAt = now
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	return nil
}

// MarkPublished flags the draft as published.
func (r *DraftRepository) MarkPublished(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE drafts SET is_published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDraftNotFound, id)
	}
	return nil
}

// List returns drafts, most recently saved first.
func (r *DraftRepository) List(ctx context.Context, limit int) ([]*models.Draft, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, title, content, cover_image, tags, publish_targets, is_published, last_saved_at, created_at
		FROM drafts
		ORDER BY last_saved_at DESC, id
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		d, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *DraftRepository) scanOne(row scanner) (*models.Draft, error) {
	var (
		d             models.Draft
		tags, targets string
	)
	err := row.Scan(
		&d.ID,
		&d.Snapshot.Title,
		&d.Snapshot.Body,
		&d.Snapshot.CoverImageURL,
		&tags,
		&targets,
		&d.IsPublished,
		&d.LastSavedAt,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft: %w", err)
	}

	var rawTargets []string
	if err := decodeJSON(tags, &d.Snapshot.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(targets, &rawTargets); err != nil {
		return nil, err
	}
	d.Snapshot.Targets = models.ParseTargets(rawTargets...)
	return &d, nil
}

func nonNil(tags models.Tags) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
