package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

type platformRow struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Endpoint    string `json:"endpoint,omitempty"`
	FeedURL     string `json:"feed_url,omitempty"`
	Sync        bool   `json:"sync"`
	Self        bool   `json:"self"`
	Publishable bool   `json:"publishable"`
}

// Platforms prints the registry in configuration order.
func (r *Runner) Platforms(ctx context.Context, cmd *cli.Command) error {
	all := r.registry.All()
	rows := make([]platformRow, 0, len(all))
	for _, p := range all {
		rows = append(rows, platformRow{
			ID:          string(p.ID),
			Label:       p.Label,
			Endpoint:    p.Endpoint,
			FeedURL:     p.FeedURL,
			Sync:        p.Sync,
			Self:        p.Self,
			Publishable: p.Publishable(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Platforms")
	for _, row := range rows {
		var flags string
		switch {
		case row.Self:
			flags = "drafts"
		case row.Publishable && row.Sync:
			flags = "publish, sync"
		case row.Publishable:
			flags = "publish"
		case row.Sync:
			flags = "sync"
		}
		if err := r.writePlain("%-12s %-14s %s\n", row.ID, row.Label, flags); err != nil {
			return err
		}
	}
	return nil
}
