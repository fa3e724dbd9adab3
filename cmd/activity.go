package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/formatter"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/scheduler"
	"github.com/desertthunder/crosspost/internal/tasks"
)

// ActivityList fetches, reconciles and prints the timeline, optionally one page of it.
func (r *Runner) ActivityList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	progress, stop := r.watchProgress()
	entries, err := r.activityEngine().Timeline(ctx, progress)
	stop()
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}

	if size := cmd.Int("size"); size > 0 {
		page := cmd.Int("page")
		r.logger.Debug("paging timeline", "page", page, "of", tasks.PageCount(len(entries), size))
		entries = tasks.Page(entries, page, size)
	}

	data, err := formatter.Timeline(entries, format)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(data, format, path)
		if err != nil {
			return err
		}
		return r.writePlain("Exported %d entries to %s\n", len(entries), written)
	}
	return r.writeBytes(data)
}

// ActivitySync triggers a backend sync for --scope. With --refresh it waits and prints the new timeline.
func (r *Runner) ActivitySync(ctx context.Context, cmd *cli.Command) error {
	scope := cmd.String("scope")
	if _, err := r.registry.SyncScope(scope); err != nil {
		return err
	}

	engine := r.activityEngine()
	progress, stop := r.watchProgress()
	defer stop()

	if cmd.Bool("refresh") {
		entries, err := engine.Refresh(ctx, scope, progress)
		if err != nil {
			return fmt.Errorf("failed to refresh activity: %w", err)
		}
		data, err := formatter.TimelineToText(entries)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}

	resp, err := engine.Sync(ctx, scope, progress)
	if err != nil {
		return fmt.Errorf("failed to trigger sync: %w", err)
	}
	if err := r.writePlain("%s\n", resp.Message); err != nil {
		return err
	}
	if len(resp.Enqueued) > 0 {
		return r.writePlain("Enqueued: %s\n", strings.Join(resp.Enqueued, ", "))
	}
	return nil
}

// ActivityWatch refreshes the timeline on a cron schedule until interrupted.
func (r *Runner) ActivityWatch(ctx context.Context, cmd *cli.Command) error {
	spec := cmd.String("schedule")
	if spec == "" {
		spec = r.config.Sync.Schedule
	}

	sched, err := scheduler.New(ctx, r.activityEngine(), scheduler.Options{
		Spec:    spec,
		Scope:   cmd.String("scope"),
		Timeout: cmd.Duration("timeout"),
		Logger:  r.logger,
		OnRefresh: func(entries []models.TimelineEntry, err error) {
			if err != nil {
				return
			}
			r.writePlain("%s  %d entries\n", time.Now().Format(time.DateTime), len(entries))
		},
	})
	if err != nil {
		return err
	}

	if cmd.Bool("now") {
		sched.RunNow()
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	r.logger.Info("watching activity", "schedule", spec, "next", sched.Next().Format(time.DateTime))
	<-ctx.Done()
	return nil
}
