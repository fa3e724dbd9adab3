package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

func (b *Backend) getDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	draft, err := b.drafts.Get(r.Context(), id)
	if errors.Is(err, shared.ErrDraftNotFound) {
		writeError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if err != nil {
		b.logger.Error("failed to load draft", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load draft")
		return
	}
	writeJSON(w, http.StatusOK, draftRecord(draft))
}

// putDraft stores the body as the draft's content and mirrors titled drafts into the self channel.
func (b *Backend) putDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body services.DraftRecord
	if err := decodeBody(w, r, &body, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid draft body")
		return
	}

	draft := &models.Draft{ID: id, Snapshot: body.Snapshot(), IsPublished: body.IsPublished}
	if existing, err := b.drafts.Get(r.Context(), id); err == nil {
		draft.IsPublished = draft.IsPublished || existing.IsPublished
		draft.CreatedAt = existing.CreatedAt
	}
	if err := b.drafts.Save(r.Context(), draft); err != nil {
		b.logger.Error("failed to save draft", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save draft")
		return
	}

	if selfID, ok := b.registry.Self(); ok && strings.TrimSpace(draft.Snapshot.Title) != "" {
		status := "draft"
		if draft.IsPublished {
			status = "published"
		}
		rec := models.RawActivityRecord{
			Platform:    string(selfID),
			RemoteID:    id,
			Title:       draft.Snapshot.Title,
			Status:      status,
			PublishedAt: models.Some(draft.LastSavedAt),
		}
		if err := b.posts.Upsert(r.Context(), rec); err != nil {
			b.logger.Warn("failed to mirror draft", "id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, draftRecord(draft))
}

func draftRecord(d *models.Draft) services.DraftRecord {
	record := services.NewDraftRecord(d.ID, d.Snapshot)
	record.IsPublished = d.IsPublished
	record.LastSavedAt = models.Some(d.LastSavedAt)
	return record
}
