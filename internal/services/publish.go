package services

import (
	"context"
	"net/http"
)

// PublishAPI implements [PublishClient].
type PublishAPI struct {
	api *APIService
}

// NewPublishAPI wraps api.
func NewPublishAPI(api *APIService) *PublishAPI {
	return &PublishAPI{api: api}
}

// Publish posts payload to endpoint. Any non-2xx response is returned as a [*StatusError].
func (p *PublishAPI) Publish(ctx context.Context, endpoint string, payload PublishPayload) error {
	resp, err := p.api.sendJSON(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	return resp.Err()
}
