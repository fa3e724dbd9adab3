package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// DraftAPI implements [DraftClient] against /api/drafts/:id.
type DraftAPI struct {
	api *APIService
}

// NewDraftAPI wraps api.
func NewDraftAPI(api *APIService) *DraftAPI {
	return &DraftAPI{api: api}
}

func draftPath(id string) string {
	return "/api/drafts/" + url.PathEscape(id)
}

// GetDraft fetches the draft, mapping 404 to [shared.ErrDraftNotFound].
func (d *DraftAPI) GetDraft(ctx context.Context, id string) (models.DraftSnapshot, error) {
	record, err := d.GetRecord(ctx, id)
	if err != nil {
		return models.DraftSnapshot{}, err
	}
	return record.Snapshot(), nil
}

// GetRecord fetches the full stored record, including bookkeeping fields.
func (d *DraftAPI) GetRecord(ctx context.Context, id string) (*DraftRecord, error) {
	if id == "" {
		return nil, shared.ErrMissingDraftID
	}
	resp, err := d.api.Get(ctx, draftPath(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", shared.ErrDraftNotFound, id)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var record DraftRecord
	if err := resp.Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PutDraft writes snapshot as the current content of draft id.
func (d *DraftAPI) PutDraft(ctx context.Context, id string, snapshot models.DraftSnapshot) error {
	if id == "" {
		return shared.ErrMissingDraftID
	}
	resp, err := d.api.sendJSON(ctx, http.MethodPut, draftPath(id), NewDraftRecord(id, snapshot))
	if err != nil {
		return err
	}
	return resp.Err()
}
