package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

type publishResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// publish accepts one platform's share of a fan-out and records it as a queued post.
func (b *Backend) publish(w http.ResponseWriter, r *http.Request) {
	id := models.PlatformID(strings.ToLower(r.PathValue("platform")))
	platform, ok := b.registry.Lookup(id)
	if !ok || !platform.Publishable() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown platform: %s", id))
		return
	}

	var payload services.PublishPayload
	if err := decodeBody(w, r, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid publish body")
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	if b.publishHook != nil {
		if err := b.publishHook(r.Context(), platform, payload); err != nil {
			b.logger.Warn("publish rejected", "platform", id, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}

	rec := models.RawActivityRecord{
		Platform:    string(id),
		RemoteID:    shared.GenerateID(),
		Title:       payload.Title,
		Status:      "queued",
		PublishedAt: models.Some(time.Now()),
	}
	if err := b.posts.Upsert(r.Context(), rec); err != nil {
		b.logger.Error("failed to record publish", "platform", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to queue publish")
		return
	}

	b.logger.Info("publish queued", "platform", id, "title", payload.Title)
	writeJSON(w, http.StatusAccepted, publishResponse{
		Status:  "queued",
		Message: fmt.Sprintf("Publishing to %s queued", platform.Label),
	})
}
