package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/content"
	"github.com/desertthunder/crosspost/internal/drafts"
	"github.com/desertthunder/crosspost/internal/editor"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/tasks"
)

const maxComposeLine = 1 << 20

// Compose opens an editing session and feeds it stdin line by line.
//
// Every line replaces the body, so autosave fires once input pauses for the configured delay.
// EOF triggers a final manual save and, with --publish, a fan-out to the selected targets.
func (r *Runner) Compose(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		id = shared.GenerateID()
	}

	var jobs tasks.JobRecorder
	closeJobs := func() {}
	if cmd.Bool("publish") {
		jobs, closeJobs = r.jobLog()
	}
	defer closeJobs()

	session := editor.New(r.draftStore(id), editor.Options{
		Delay:     r.config.Editor.AutosaveDelay.Duration,
		MaxTags:   r.config.Editor.MaxTags,
		Publisher: r.publishEngine(jobs),
		Logger:    r.logger,
	})
	defer session.Close()

	go func(changes <-chan drafts.StatusChange) {
		for change := range changes {
			if change.Err != nil {
				r.logger.Warn("autosave failed", "draft", id, "error", change.Err)
				continue
			}
			r.logger.Debug("save status", "draft", id, "from", change.From, "to", change.To)
		}
	}(session.Subscribe())

	snap := session.Open(ctx)
	if err := r.applySessionFlags(cmd, session, snap); err != nil {
		return err
	}

	render := func(s string) string { return s }
	if cmd.Bool("markdown") {
		render = func(s string) string { return content.MarkdownToHTML([]byte(s)) }
	}

	var body strings.Builder
	scanner := bufio.NewScanner(r.input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxComposeLine)
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteByte('\n')
		if err := session.SetBody(render(body.String())); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	status, err := session.SaveNow(ctx)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", id, err)
	}
	if err := r.writePlain("%s %s\n", id, status); err != nil {
		return err
	}

	if !cmd.Bool("publish") {
		return nil
	}

	progress, stop := r.watchProgress()
	result, err := session.Publish(ctx, progress)
	stop()
	if err != nil {
		return err
	}
	return r.writeBatch(result, false)
}

func (r *Runner) applySessionFlags(cmd *cli.Command, session *editor.Session, snap models.DraftSnapshot) error {
	if cmd.IsSet("title") {
		if err := session.SetTitle(cmd.String("title")); err != nil {
			return err
		}
	}
	if cmd.IsSet("cover") {
		if err := session.SetCover(cmd.String("cover")); err != nil {
			return err
		}
	}
	if cmd.IsSet("tag") {
		for _, tag := range snap.Tags {
			if err := session.RemoveTag(tag); err != nil {
				return err
			}
		}
		for _, tag := range cmd.StringSlice("tag") {
			if err := session.AddTag(tag); err != nil {
				return err
			}
		}
	}
	if cmd.IsSet("to") {
		targets := models.ParseTargets(cmd.StringSlice("to")...)
		if _, err := r.registry.Resolve(targets); err != nil {
			return err
		}
		if err := session.SetTargets(targets); err != nil {
			return err
		}
	}
	return nil
}
