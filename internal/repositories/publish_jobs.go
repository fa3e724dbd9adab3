package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// PublishJobRepository logs fan-out batches. It implements tasks.JobRecorder.
type PublishJobRepository struct {
	db *sql.DB
}

// NewPublishJobRepository creates a new PublishJobRepository with the given database connection
func NewPublishJobRepository(db *sql.DB) *PublishJobRepository {
	return &PublishJobRepository{db: db}
}

// RecordPublishJob inserts job, generating an id when it has none.
func (r *PublishJobRepository) RecordPublishJob(ctx context.Context, job models.PublishJob) error {
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	targets, err := encodeJSON(job.Targets.Strings())
	if err != nil {
		return err
	}
	succeeded, err := encodeJSON(nonNilIDs(job.Result.Succeeded))
	if err != nil {
		return err
	}
	failed, err := encodeJSON(nonNilFailures(job.Result.Failed))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO publish_jobs (id, draft_id, title, targets, succeeded, failed, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.DraftID,
		job.Title,
		targets,
		succeeded,
		failed,
		job.StartedAt.UTC(),
		job.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert publish job: %w", err)
	}
	return nil
}

// Get retrieves a publish job by id.
func (r *PublishJobRepository) Get(ctx context.Context, id string) (*models.PublishJob, error) {
	query := `
		SELECT id, draft_id, title, targets, succeeded, failed, started_at, completed_at
		FROM publish_jobs
		WHERE id = ?
	`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("publish job not found: %s", id)
	}
	return job, err
}

// List returns jobs newest first, optionally restricted to one draft.
func (r *PublishJobRepository) List(ctx context.Context, draftID string, limit int) ([]*models.PublishJob, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, draft_id, title, targets, succeeded, failed, started_at, completed_at
		FROM publish_jobs
		WHERE ? = '' OR draft_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, draftID, draftID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.PublishJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row scanner) (*models.PublishJob, error) {
	var (
		job                        models.PublishJob
		targets, succeeded, failed string
		rawTargets                 []string
	)
	if err := row.Scan(&job.ID, &job.DraftID, &job.Title, &targets, &succeeded, &failed, &job.StartedAt, &job.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan publish job: %w", err)
	}
	if err := decodeJSON(targets, &rawTargets); err != nil {
		return nil, err
	}
	job.Targets = models.ParseTargets(rawTargets...)
	if err := decodeJSON(succeeded, &job.Result.Succeeded); err != nil {
		return nil, err
	}
	if err := decodeJSON(failed, &job.Result.Failed); err != nil {
		return nil, err
	}
	return &job, nil
}

func nonNilIDs(ids []models.PlatformID) []models.PlatformID {
	if ids == nil {
		return []models.PlatformID{}
	}
	return ids
}

func nonNilFailures(f []models.PublishFailure) []models.PublishFailure {
	if f == nil {
		return []models.PublishFailure{}
	}
	return f
}
