// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/ui"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   configFile,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

// draftFlags are shared by every command that builds a draft from flags.
func draftFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Post title"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Body file (.md is rendered to HTML, - reads stdin)"},
		&cli.StringFlag{Name: "cover", Usage: "Cover image URL"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Tag, repeatable"},
		&cli.StringSliceFlag{Name: "to", Usage: "Target platforms, repeatable or comma separated"},
	}
}

// setupCommand handles first-run initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the local database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the SQLite database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// draftCommand handles draft storage operations
func draftCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Create, inspect and save drafts",
		Commands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Create a draft and print its id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Initial title"},
				},
				Action: r.DraftNew,
			},
			{
				Name:  "get",
				Usage: "Print a stored draft",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Draft id", Required: true},
					&cli.StringFlag{Name: "format", Usage: "Output format: markdown or json", Value: "markdown"},
				},
				Action: r.DraftGet,
			},
			{
				Name:  "save",
				Usage: "Write a draft from flags, keeping stored fields that are not set",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Draft id, generated when empty"},
				}, draftFlags()...),
				Action: r.DraftSave,
			},
		},
	}
}

// composeCommand streams stdin into an autosaving editing session
func composeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "compose",
		Usage: "Write a draft body from stdin with autosave",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Draft id, generated when empty"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Post title"},
			&cli.StringFlag{Name: "cover", Usage: "Cover image URL"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag, repeatable"},
			&cli.StringSliceFlag{Name: "to", Usage: "Target platforms, repeatable or comma separated"},
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"md"}, Usage: "Render the body as markdown"},
			&cli.BoolFlag{Name: "publish", Usage: "Publish to the selected targets after the final save"},
		},
		Action: r.Compose,
	}
}

// publishCommand handles fan-out publishing and its job log
func publishCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish a draft to several platforms at once",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Stored draft to publish"},
			jsonFlag(),
		}, draftFlags()...),
		Action: r.Publish,
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "List recorded publish batches",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Only batches for this draft"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of batches", Value: 20},
					jsonFlag(),
				},
				Action: r.PublishHistory,
			},
		},
	}
}

// activityCommand handles the unified activity timeline
func activityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "activity",
		Aliases: []string{"act"},
		Usage:   "Browse and sync the unified activity timeline",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print the reconciled timeline",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "1-based page number", Value: 1},
					&cli.IntFlag{Name: "size", Usage: "Page size, 0 prints everything", Value: 0},
					&cli.StringFlag{Name: "format", Usage: "text, markdown, csv, json or yaml", Value: "text"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a file instead of stdout"},
				},
				Action: r.ActivityList,
			},
			{
				Name:  "sync",
				Usage: "Ask the backend to pull fresh platform activity",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scope", Usage: "all or a platform id", Value: platforms.ScopeAll},
					&cli.BoolFlag{Name: "refresh", Usage: "Wait and print the refreshed timeline"},
				},
				Action: r.ActivitySync,
			},
			{
				Name:  "watch",
				Usage: "Sync and refresh on a cron schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "schedule", Usage: "Cron spec, defaults to [sync] schedule"},
					&cli.StringFlag{Name: "scope", Usage: "all or a platform id", Value: platforms.ScopeAll},
					&cli.DurationFlag{Name: "timeout", Usage: "Bound on one refresh"},
					&cli.BoolFlag{Name: "now", Usage: "Refresh once before the first tick"},
				},
				Action: r.ActivityWatch,
			},
		},
	}
}

// serveCommand runs the local development backend
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local SQLite-backed backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host, defaults to [server] host"},
			&cli.IntFlag{Name: "port", Usage: "Listen port, defaults to [server] port"},
			&cli.Float64Flag{Name: "rate-limit", Usage: "Requests per second, 0 disables limiting"},
			&cli.StringSliceFlag{Name: "reject", Usage: "Platforms whose publish requests fail, for testing"},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the timeline browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse the activity timeline interactively",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "size", Usage: "Entries per page", Value: ui.DefaultPageSize},
			&cli.StringFlag{Name: "scope", Usage: "Sync scope for the sync key", Value: platforms.ScopeAll},
			&cli.StringFlag{Name: "log", Usage: "Log file", Value: "./tmp/crosspost-tui.log"},
		},
		Action: r.TUI,
	}
}

// coverCommand handles cover image uploads
func coverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cover",
		Usage: "Manage cover images",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload an image to object storage and print its public URL",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Fetch the image from a URL instead of a file"},
					&cli.StringFlag{Name: "id", Usage: "Set the uploaded image as this draft's cover"},
				},
				Action: r.CoverUpload,
			},
		},
	}
}

// platformsCommand lists the configured platforms
func platformsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "platforms",
		Usage:  "List configured platforms",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Platforms,
	}
}
