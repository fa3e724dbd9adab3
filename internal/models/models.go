package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/crosspost/internal/shared"
)

// PlatformID identifies a publishing platform (medium, devto, linkedin, ...).
type PlatformID string

// SaveStatus is the autosave state of a single draft.
type SaveStatus int

const (
	StatusIdle SaveStatus = iota
	StatusUnsaved
	StatusSaving
	StatusSaved
	StatusError
)

func (s SaveStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusUnsaved:
		return "unsaved"
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultMaxTags is the tag limit used when none is configured.
const DefaultMaxTags = 4

// Tags is an ordered list of unique, trimmed tags.
type Tags []string

// Add returns a copy of t with tag appended.
//
// Tags are trimmed; empty tags, duplicates and tags beyond max are rejected. max <= 0 uses [DefaultMaxTags].
func (t Tags) Add(tag string, max int) (Tags, error) {
	if max <= 0 {
		max = DefaultMaxTags
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return t, shared.ErrEmptyTag
	}
	if slices.Contains(t, tag) {
		return t, fmt.Errorf("%w: %q", shared.ErrDuplicateTag, tag)
	}
	if len(t) >= max {
		return t, fmt.Errorf("%w: at most %d", shared.ErrTooManyTags, max)
	}

	out := make(Tags, len(t), len(t)+1)
	copy(out, t)
	return append(out, tag), nil
}

// Remove returns a copy of t without tag.
func (t Tags) Remove(tag string) Tags {
	out := make(Tags, 0, len(t))
	for _, existing := range t {
		if existing != tag {
			out = append(out, existing)
		}
	}
	return out
}

// ParseTags builds a [Tags] value from raw input, applying the same rules as [Tags.Add].
func ParseTags(raw []string, max int) (Tags, error) {
	var tags Tags
	for _, r := range raw {
		next, err := tags.Add(r, max)
		if err != nil {
			return tags, err
		}
		tags = next
	}
	return tags, nil
}

// TargetSet is an insertion-ordered set of platform ids.
type TargetSet []PlatformID

// NewTargetSet lowercases and de-duplicates ids, dropping blanks and keeping first-seen order.
func NewTargetSet(ids ...PlatformID) TargetSet {
	set := make(TargetSet, 0, len(ids))
	for _, id := range ids {
		id = PlatformID(strings.ToLower(strings.TrimSpace(string(id))))
		if id == "" || slices.Contains(set, id) {
			continue
		}
		set = append(set, id)
	}
	return set
}

// ParseTargets splits values like "medium,devto" into a [TargetSet].
func ParseTargets(values ...string) TargetSet {
	var ids []PlatformID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			ids = append(ids, PlatformID(part))
		}
	}
	return NewTargetSet(ids...)
}

// Contains reports whether id is in the set.
func (s TargetSet) Contains(id PlatformID) bool {
	return slices.Contains(s, id)
}

// Strings returns the ids as plain strings.
func (s TargetSet) Strings() []string {
	out := make([]string, len(s))
	for i, id := range s {
		out[i] = string(id)
	}
	return out
}

// DraftSnapshot is a captured set of editable field values.
//
// Snapshots are treated as immutable once captured; use [DraftSnapshot.Clone] before handing one to another goroutine.
type DraftSnapshot struct {
	Title         string
	Body          string // serialized editor content, opaque to this package
	CoverImageURL string
	Tags          Tags
	Targets       TargetSet
}

// Clone returns a deep copy of s.
func (s DraftSnapshot) Clone() DraftSnapshot {
	s.Tags = slices.Clone(s.Tags)
	s.Targets = slices.Clone(s.Targets)
	return s
}

// Equal reports whether two snapshots hold the same field values.
func (s DraftSnapshot) Equal(o DraftSnapshot) bool {
	return s.Title == o.Title &&
		s.Body == o.Body &&
		s.CoverImageURL == o.CoverImageURL &&
		slices.Equal(s.Tags, o.Tags) &&
		slices.Equal(s.Targets, o.Targets)
}

// IsZero reports whether nothing has been entered.
func (s DraftSnapshot) IsZero() bool {
	return s.Equal(DraftSnapshot{})
}

// PublishOutcome is the result of publishing to one target.
type PublishOutcome struct {
	Target PlatformID
	OK     bool
	Reason string // human-readable failure reason, empty on success
}

// PublishFailure pairs a failed target with its reason.
type PublishFailure struct {
	Target PlatformID `json:"target" yaml:"target"`
	Reason string     `json:"reason" yaml:"reason"`
}

// PublishBatchResult aggregates the outcomes of one fan-out.
//
// Both lists follow the order in which targets were requested, not the order requests completed.
type PublishBatchResult struct {
	Succeeded []PlatformID     `json:"succeeded" yaml:"succeeded"`
	Failed    []PublishFailure `json:"failed" yaml:"failed"`
}

// NewPublishBatchResult folds outcomes into a batch result, ordered by targets.
func NewPublishBatchResult(targets TargetSet, outcomes map[PlatformID]PublishOutcome) PublishBatchResult {
	result := PublishBatchResult{Succeeded: []PlatformID{}, Failed: []PublishFailure{}}
	for _, target := range targets {
		outcome, ok := outcomes[target]
		switch {
		case !ok:
			result.Failed = append(result.Failed, PublishFailure{Target: target, Reason: "no response"})
		case outcome.OK:
			result.Succeeded = append(result.Succeeded, target)
		default:
			reason := outcome.Reason
			if reason == "" {
				reason = "unknown error"
			}
			result.Failed = append(result.Failed, PublishFailure{Target: target, Reason: reason})
		}
	}
	return result
}

// AllSucceeded reports total success.
func (r PublishBatchResult) AllSucceeded() bool {
	return len(r.Failed) == 0 && len(r.Succeeded) > 0
}

// AllFailed reports total failure.
func (r PublishBatchResult) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}

// Partial reports a mixed outcome.
func (r PublishBatchResult) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

// RawActivityRecord is one publication row returned by the activity endpoint.
type RawActivityRecord struct {
	Platform       string    `json:"platform"`
	RemoteID       string    `json:"remote_id"`
	Title          string    `json:"title"`
	URL            string    `json:"url,omitempty"`
	Status         string    `json:"status,omitempty"`
	Views          int       `json:"views,omitempty"`
	Reactions      int       `json:"reactions,omitempty"`
	Comments       int       `json:"comments,omitempty"`
	PublishedAt    Timestamp `json:"published_at"`
	PublishTargets []string  `json:"publish_targets,omitempty"`
}

// TimelineEntry is the reconciled, display-ready view of one logical post.
type TimelineEntry struct {
	GroupKey       string    `json:"group_key" yaml:"group_key"`
	Title          string    `json:"title" yaml:"title"`
	MostRecent     Timestamp `json:"most_recent" yaml:"most_recent"`
	PlatformLabels []string  `json:"platform_labels" yaml:"platform_labels"`
	OriginDraftID  string    `json:"origin_draft_id,omitempty" yaml:"origin_draft_id,omitempty"`
	URL            string    `json:"url,omitempty" yaml:"url,omitempty"`
	Status         string    `json:"status,omitempty" yaml:"status,omitempty"`
	Views          int       `json:"views" yaml:"views"`
	Reactions      int       `json:"reactions" yaml:"reactions"`
	Comments       int       `json:"comments" yaml:"comments"`
}

// HasOrigin reports whether the entry links back to a local draft.
func (e TimelineEntry) HasOrigin() bool {
	return e.OriginDraftID != ""
}

// PublishJob is the local log entry for one fan-out batch.
type PublishJob struct {
	ID          string             `json:"id" yaml:"id"`
	DraftID     string             `json:"draft_id,omitempty" yaml:"draft_id,omitempty"`
	Title       string             `json:"title" yaml:"title"`
	Targets     TargetSet          `json:"targets" yaml:"targets"`
	Result      PublishBatchResult `json:"result" yaml:"result"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time          `json:"completed_at" yaml:"completed_at"`
}

// Draft is a stored draft as persisted by the local backend.
type Draft struct {
	ID          string
	Snapshot    DraftSnapshot
	IsPublished bool
	LastSavedAt time.Time
	CreatedAt   time.Time
}
