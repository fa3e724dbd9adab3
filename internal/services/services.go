// package services implements the HTTP+JSON collaborators used by the core: drafts, publishing and activity.
package services

import (
	"context"

	"github.com/desertthunder/crosspost/internal/models"
)

// DraftClient reads and writes a single draft record.
type DraftClient interface {
	// GetDraft returns [shared.ErrDraftNotFound] when the draft does not exist.
	GetDraft(ctx context.Context, id string) (models.DraftSnapshot, error)
	PutDraft(ctx context.Context, id string, snapshot models.DraftSnapshot) error
}

// PublishClient sends one publish request to one platform endpoint.
type PublishClient interface {
	Publish(ctx context.Context, endpoint string, payload PublishPayload) error
}

// ActivityClient fetches publication records and asks the backend to refresh them.
type ActivityClient interface {
	Activity(ctx context.Context, limit int) ([]models.RawActivityRecord, error)
	TriggerSync(ctx context.Context, scope string) (SyncResponse, error)
}

// DraftRecord is the wire representation of a stored draft.
type DraftRecord struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Content        string           `json:"content"`
	CoverImage     string           `json:"cover_image"`
	Tags           []string         `json:"tags"`
	PublishTargets []string         `json:"publish_targets"`
	LastSavedAt    models.Timestamp `json:"last_saved_at"`
	IsPublished    bool             `json:"is_published"`
}

// Snapshot converts the record into editable field values.
func (r DraftRecord) Snapshot() models.DraftSnapshot {
	targets := make([]models.PlatformID, 0, len(r.PublishTargets))
	for _, t := range r.PublishTargets {
		targets = append(targets, models.PlatformID(t))
	}
	return models.DraftSnapshot{
		Title:         r.Title,
		Body:          r.Content,
		CoverImageURL: r.CoverImage,
		Tags:          models.Tags(append([]string(nil), r.Tags...)),
		Targets:       models.NewTargetSet(targets...),
	}
}

// NewDraftRecord builds the record written for snapshot.
func NewDraftRecord(id string, s models.DraftSnapshot) DraftRecord {
	tags := []string(s.Tags)
	if tags == nil {
		tags = []string{}
	}
	return DraftRecord{
		ID:             id,
		Title:          s.Title,
		Content:        s.Body,
		CoverImage:     s.CoverImageURL,
		Tags:           tags,
		PublishTargets: s.Targets.Strings(),
	}
}

// PublishPayload is the body of a publish request.
type PublishPayload struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CoverImage string   `json:"cover_image,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	BlogURL    string   `json:"blog_url,omitempty"`
}

// ActivityResponse is the body returned by the activity endpoint.
type ActivityResponse struct {
	Posts []models.RawActivityRecord `json:"posts"`
	Count int                        `json:"count"`
}

// SyncRequest asks the backend to refresh the given scope ("all" or a platform id).
type SyncRequest struct {
	Platform string `json:"platform"`
}

// SyncResponse acknowledges a sync request. The refresh itself runs asynchronously.
type SyncResponse struct {
	Message  string   `json:"message"`
	Enqueued []string `json:"enqueued"`
}
