package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

// defaultActivityLimit applies when the request has no limit parameter.
const defaultActivityLimit = 20

func (b *Backend) activity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	posts, err := b.posts.Activity(r.Context(), limit)
	if err != nil {
		b.logger.Error("failed to load activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, services.ActivityResponse{Posts: posts, Count: len(posts)})
}

// sync starts a background refresh of the requested scope and answers immediately.
func (b *Backend) sync(w http.ResponseWriter, r *http.Request) {
	var req services.SyncRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sync body")
		return
	}

	rows, err := b.registry.SyncScope(req.Platform)
	if errors.Is(err, shared.ErrUnknownPlatform) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown platform: %s", req.Platform))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	enqueued := b.syncer.Enqueue(rows)
	writeJSON(w, http.StatusAccepted, services.SyncResponse{
		Message:  fmt.Sprintf("Sync started for %d platform(s)", len(enqueued)),
		Enqueued: enqueued,
	})
}
