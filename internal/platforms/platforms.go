// Package platforms holds the data-driven table of publishing platforms.
//
// Every platform-specific detail (display label, publish endpoint, feed, sync scope) lives in a [Platform] row,
// so adding a platform is a configuration change and the fan-out and reconciliation algorithms never branch on ids.
package platforms

import (
	"fmt"
	"strings"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// SelfID is the id of the built-in channel that represents locally stored drafts.
const SelfID models.PlatformID = "postificus"

// ScopeAll selects every sync-enabled platform.
const ScopeAll = "all"

// Platform is one row of the registry.
type Platform struct {
	ID       models.PlatformID
	Label    string
	Endpoint string // publish path, relative to the API base URL
	FeedURL  string // RSS/Atom feed used by the dev backend sync worker
	Sync     bool   // included in "all" sync requests
	Self     bool   // the local draft channel
}

// Publishable reports whether content can be fanned out to the platform.
func (p Platform) Publishable() bool {
	return !p.Self && p.Endpoint != ""
}

// Registry maps platform ids to their rows, preserving configuration order.
type Registry struct {
	order []models.PlatformID
	byID  map[models.PlatformID]Platform
	self  models.PlatformID
}

// New builds a registry, rejecting blank and duplicate ids.
func New(rows ...Platform) (*Registry, error) {
	r := &Registry{byID: make(map[models.PlatformID]Platform, len(rows))}
	for _, p := range rows {
		p.ID = models.PlatformID(strings.ToLower(strings.TrimSpace(string(p.ID))))
		if p.ID == "" {
			return nil, fmt.Errorf("%w: platform id is empty", shared.ErrInvalidConfig)
		}
		if _, ok := r.byID[p.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate platform %q", shared.ErrInvalidConfig, p.ID)
		}
		if p.Label == "" {
			p.Label = string(p.ID)
		}
		if p.Self {
			if r.self != "" {
				return nil, fmt.Errorf("%w: more than one self platform", shared.ErrInvalidConfig)
			}
			r.self = p.ID
		}
		r.order = append(r.order, p.ID)
		r.byID[p.ID] = p
	}
	return r, nil
}

// FromConfig builds a registry from the [[platforms]] tables.
func FromConfig(rows []shared.PlatformConfig) (*Registry, error) {
	ps := make([]Platform, 0, len(rows))
	for _, row := range rows {
		ps = append(ps, Platform{
			ID:       models.PlatformID(row.ID),
			Label:    row.Label,
			Endpoint: row.Endpoint,
			FeedURL:  row.FeedURL,
			Sync:     row.Sync,
			Self:     row.Self,
		})
	}
	return New(ps...)
}

// Default returns the registry described by the embedded default config.
func Default() *Registry {
	r, err := FromConfig(shared.DefaultConfig().Platforms)
	if err != nil {
		panic(fmt.Sprintf("invalid default platforms: %v", err))
	}
	return r
}

// Lookup returns the row for id.
func (r *Registry) Lookup(id models.PlatformID) (Platform, bool) {
	p, ok := r.byID[normalize(string(id))]
	return p, ok
}

// Label maps a raw platform id to its display name. Unknown ids are returned unchanged.
func (r *Registry) Label(id string) string {
	if p, ok := r.byID[normalize(id)]; ok {
		return p.Label
	}
	return strings.TrimSpace(id)
}

// IsSelf reports whether id names the local draft channel.
func (r *Registry) IsSelf(id string) bool {
	return r.self != "" && normalize(id) == r.self
}

// Self returns the local draft channel id, if configured.
func (r *Registry) Self() (models.PlatformID, bool) {
	return r.self, r.self != ""
}

// All returns every platform in configuration order.
func (r *Registry) All() []Platform {
	out := make([]Platform, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Publishable returns the platforms content can be published to.
func (r *Registry) Publishable() []Platform {
	var out []Platform
	for _, p := range r.All() {
		if p.Publishable() {
			out = append(out, p)
		}
	}
	return out
}

// SyncScope resolves a sync scope ("all" or a platform id) to the platforms to refresh.
func (r *Registry) SyncScope(scope string) ([]Platform, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" || scope == ScopeAll {
		var out []Platform
		for _, p := range r.All() {
			if p.Sync {
				out = append(out, p)
			}
		}
		return out, nil
	}
	p, ok := r.byID[models.PlatformID(scope)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownPlatform, scope)
	}
	return []Platform{p}, nil
}

// Resolve checks every target against the registry, returning the first unknown or unpublishable id.
func (r *Registry) Resolve(targets models.TargetSet) ([]Platform, error) {
	out := make([]Platform, 0, len(targets))
	for _, id := range targets {
		p, ok := r.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", shared.ErrUnknownPlatform, id)
		}
		if !p.Publishable() {
			return nil, fmt.Errorf("%w: %q does not accept publish requests", shared.ErrUnknownPlatform, id)
		}
		out = append(out, p)
	}
	return out, nil
}

func normalize(id string) models.PlatformID {
	return models.PlatformID(strings.ToLower(strings.TrimSpace(id)))
}
