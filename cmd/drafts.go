package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/formatter"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

// DraftNew allocates a draft id and, when --title is given, stores the first version.
func (r *Runner) DraftNew(ctx context.Context, cmd *cli.Command) error {
	id := shared.GenerateID()

	if title := cmd.String("title"); title != "" {
		store := r.draftStore(id)
		defer store.Close()
		store.MarkReady()

		status, err := store.SaveNow(ctx, models.DraftSnapshot{Title: title})
		if err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		r.logger.Debug("draft created", "id", id, "status", status)
	}

	return r.writePlain("%s\n", id)
}

// DraftGet prints a stored draft as markdown with front matter or as its JSON record.
func (r *Runner) DraftGet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	record, err := services.NewDraftAPI(r.api).GetRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("draft %s: %w", id, err)
	}

	switch strings.ToLower(cmd.String("format")) {
	case "json":
		return r.writeJSON(record, true)
	case "markdown", "md", "":
		data, err := formatter.DraftToMarkdown(id, record.Snapshot())
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	default:
		return fmt.Errorf("%w: unsupported draft format %q", shared.ErrInvalidArgument, cmd.String("format"))
	}
}

// DraftSave hydrates the draft, applies the flags that were set and writes it immediately.
func (r *Runner) DraftSave(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		id = shared.GenerateID()
	}

	store := r.draftStore(id)
	defer store.Close()

	snap, found := store.Hydrate(ctx)
	snap, err := r.overlaySnapshot(cmd, snap)
	if err != nil {
		return err
	}

	status, err := store.SaveNow(ctx, snap)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", id, err)
	}

	r.logger.Info("draft saved", "id", id, "existing", found, "status", status)
	return r.writePlain("%s %s\n", id, status)
}
