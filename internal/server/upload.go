package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/storage"
)

// Uploader stores a cover image and returns its public URL. [storage.CoverUploader] implements it.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// WithUploader enables POST /api/upload.
func WithUploader(u Uploader) Option {
	return func(b *Backend) { b.uploader = u }
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if b.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxCoverBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxCoverBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	if len(data) > storage.MaxCoverBytes {
		writeError(w, http.StatusBadRequest, "File too large (max 5MB)")
		return
	}

	url, err := b.uploader.Upload(r.Context(), header.Filename, data, header.Header.Get("Content-Type"))
	if errors.Is(err, shared.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		b.logger.Error("upload failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
