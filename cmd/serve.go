package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/server"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/storage"
)

// Serve runs the local backend until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	backend := server.NewBackend(db, r.registry, r.backendOptions(ctx, cmd)...)
	defer backend.Close()

	return server.Serve(ctx, r.listenAddr(cmd), backend.Router(), r.logger)
}

func (r *Runner) backendOptions(ctx context.Context, cmd *cli.Command) []server.Option {
	opts := []server.Option{
		server.WithLogger(r.logger.WithPrefix("server")),
		server.WithToken(r.config.API.Token),
		server.WithRateLimit(cmd.Float64("rate-limit")),
	}

	if rejected := models.ParseTargets(cmd.StringSlice("reject")...); len(rejected) > 0 {
		opts = append(opts, server.WithPublishHook(rejectHook(rejected)))
	}

	if r.config.Storage.Bucket != "" && r.config.Storage.AccessKeyID != "" {
		uploader, err := storage.NewCoverUploader(ctx, r.config.Storage, r.logger)
		if err != nil {
			r.logger.Warn("cover uploads disabled", "error", err)
		} else {
			opts = append(opts, server.WithUploader(uploader))
		}
	}
	return opts
}

// rejectHook fails publish requests for the given platforms.
func rejectHook(rejected models.TargetSet) server.PublishHook {
	return func(_ context.Context, p platforms.Platform, _ services.PublishPayload) error {
		if rejected.Contains(p.ID) {
			return fmt.Errorf("%s rejected the post", p.Label)
		}
		return nil
	}
}

func (r *Runner) listenAddr(cmd *cli.Command) string {
	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
