package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/formatter"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/repositories"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

// Publish fans a draft out to its targets and prints one line per platform.
//
// The draft is either loaded by --id or built from --title and --file; the other draft flags override stored fields.
// The exit status is 0 when every target succeeded, 2 for a partial batch and 1 when nothing was published.
func (r *Runner) Publish(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")

	var snap models.DraftSnapshot
	if id != "" {
		loadCtx, cancel := r.withTimeout(ctx)
		stored, err := services.NewDraftAPI(r.api).GetDraft(loadCtx, id)
		cancel()
		if err != nil {
			return fmt.Errorf("draft %s: %w", id, err)
		}
		snap = stored
	} else if !cmd.IsSet("title") || cmd.String("file") == "" {
		return fmt.Errorf("%w: --id or both --title and --file", shared.ErrMissingArgument)
	}

	snap, err := r.overlaySnapshot(cmd, snap)
	if err != nil {
		return err
	}

	jobs, closeJobs := r.jobLog()
	defer closeJobs()

	progress, stop := r.watchProgress()
	result, err := r.publishEngine(jobs).PublishDraft(ctx, id, snap, snap.Targets, progress)
	stop()
	if err != nil {
		return err
	}

	return r.writeBatch(result, cmd.Bool("json"))
}

// PublishHistory lists recorded publish batches, newest first.
func (r *Runner) PublishHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open job log: %w", err)
	}
	defer db.Close()

	jobs, err := repositories.NewPublishJobRepository(db).List(ctx, cmd.String("id"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(jobs, true)
	}
	return r.writeBytes(formatter.JobsToText(jobs))
}
