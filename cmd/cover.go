package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/storage"
)

// coverUploader is the part of [storage.CoverUploader] the CLI needs.
type coverUploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
	UploadURL(ctx context.Context, src string) (string, error)
}

func (r *Runner) coverStorage(ctx context.Context) (coverUploader, error) {
	if r.uploader != nil {
		return r.uploader, nil
	}
	uploader, err := storage.NewCoverUploader(ctx, r.config.Storage, r.logger)
	if err != nil {
		return nil, err
	}
	return uploader, nil
}

// CoverUpload stores a local or remote image and prints its public URL.
//
// With --id the URL also becomes the draft's cover image.
func (r *Runner) CoverUpload(ctx context.Context, cmd *cli.Command) error {
	src, path := cmd.String("url"), cmd.Args().First()
	if src == "" && path == "" {
		return fmt.Errorf("%w: <file> or --url", shared.ErrMissingArgument)
	}
	if src != "" && path != "" {
		return fmt.Errorf("%w: cannot specify both a file and --url", shared.ErrInvalidArgument)
	}

	uploader, err := r.coverStorage(ctx)
	if err != nil {
		return err
	}

	var url string
	if src != "" {
		url, err = uploader.UploadURL(ctx, src)
	} else {
		url, err = uploader.UploadFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("failed to upload cover: %w", err)
	}
	r.logger.Info("cover uploaded", "url", url)

	if id := cmd.String("id"); id != "" {
		store := r.draftStore(id)
		defer store.Close()

		snap, _ := store.Hydrate(ctx)
		snap.CoverImageURL = url
		if _, err := store.SaveNow(ctx, snap); err != nil {
			return fmt.Errorf("uploaded %s but failed to update draft %s: %w", url, id, err)
		}
	}

	return r.writePlain("%s\n", url)
}
