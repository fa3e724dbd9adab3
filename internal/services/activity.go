package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/crosspost/internal/models"
)

const (
	activityPath = "/api/dashboard/activity"
	syncPath     = "/api/dashboard/sync"
)

// ActivityAPI implements [ActivityClient] against the dashboard endpoints.
type ActivityAPI struct {
	api *APIService
}

// NewActivityAPI wraps api.
func NewActivityAPI(api *APIService) *ActivityAPI {
	return &ActivityAPI{api: api}
}

// Activity returns up to limit publication records. limit <= 0 leaves the choice to the backend.
func (a *ActivityAPI) Activity(ctx context.Context, limit int) ([]models.RawActivityRecord, error) {
	path := activityPath
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", activityPath, limit)
	}

	resp, err := a.api.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var body ActivityResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Posts == nil {
		body.Posts = []models.RawActivityRecord{}
	}
	return body.Posts, nil
}

// TriggerSync asks the backend to refresh scope in the background.
func (a *ActivityAPI) TriggerSync(ctx context.Context, scope string) (SyncResponse, error) {
	if scope == "" {
		scope = "all"
	}
	resp, err := a.api.sendJSON(ctx, http.MethodPost, syncPath, SyncRequest{Platform: scope})
	if err != nil {
		return SyncResponse{}, err
	}
	if err := resp.Err(); err != nil {
		return SyncResponse{}, err
	}

	var out SyncResponse
	if len(resp.Body) > 0 && resp.IsJSON {
		if err := resp.Decode(&out); err != nil {
			return SyncResponse{}, err
		}
	}
	return out, nil
}
