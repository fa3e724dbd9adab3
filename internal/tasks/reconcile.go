package tasks

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
)

// UntitledPost is the display title for records without a title.
const UntitledPost = "Untitled post"

// Labeler maps raw platform ids to display names and identifies the local draft channel.
type Labeler interface {
	Label(id string) string
	IsSelf(id string) bool
}

// Reconciler merges per-platform publication records into one timeline.
type Reconciler struct {
	labels Labeler
}

// NewReconciler returns a reconciler that labels platforms through labels.
func NewReconciler(labels Labeler) *Reconciler {
	return &Reconciler{labels: labels}
}

type group struct {
	entry  models.TimelineEntry
	order  int
	labels map[string]struct{}
}

// Reconcile groups records by normalized title and returns entries newest first.
//
// The output is a fresh slice on every call and depends only on records and their order:
// entries without a known timestamp follow all dated entries, and ties keep first-appearance order.
func (r *Reconciler) Reconcile(records []models.RawActivityRecord) []models.TimelineEntry {
	index := make(map[string]*group, len(records))
	groups := make([]*group, 0, len(records))

	for i, rec := range records {
		key := GroupKey(rec, i)
		g, ok := index[key]
		if !ok {
			title := strings.TrimSpace(rec.Title)
			if title == "" {
				title = UntitledPost
			}
			g = &group{
				order:  len(groups),
				labels: map[string]struct{}{},
				entry: models.TimelineEntry{
					GroupKey:       key,
					Title:          title,
					MostRecent:     rec.PublishedAt,
					PlatformLabels: []string{},
					URL:            rec.URL,
					Status:         rec.Status,
				},
			}
			index[key] = g
			groups = append(groups, g)
		} else if rec.PublishedAt.After(g.entry.MostRecent) {
			g.entry.MostRecent = rec.PublishedAt
			if rec.URL != "" {
				g.entry.URL = rec.URL
			}
			if rec.Status != "" {
				g.entry.Status = rec.Status
			}
		}

		for _, label := range r.labelsFor(rec) {
			if _, seen := g.labels[label]; seen {
				continue
			}
			g.labels[label] = struct{}{}
			g.entry.PlatformLabels = append(g.entry.PlatformLabels, label)
		}

		if g.entry.URL == "" {
			g.entry.URL = rec.URL
		}
		if g.entry.OriginDraftID == "" && r.labels.IsSelf(rec.Platform) {
			g.entry.OriginDraftID = strings.TrimSpace(rec.RemoteID)
		}
		g.entry.Views += rec.Views
		g.entry.Reactions += rec.Reactions
		g.entry.Comments += rec.Comments
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		at, aok := a.entry.MostRecent.Get()
		bt, bok := b.entry.MostRecent.Get()
		switch {
		case aok && bok && !at.Equal(bt):
			return bt.Compare(at)
		case aok != bok:
			if aok {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.order, b.order)
	})

	out := make([]models.TimelineEntry, len(groups))
	for i, g := range groups {
		out[i] = g.entry
	}
	return out
}

func (r *Reconciler) labelsFor(rec models.RawActivityRecord) []string {
	ids := rec.PublishTargets
	if len(ids) == 0 {
		ids = []string{rec.Platform}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, r.labels.Label(id))
	}
	return out
}

// GroupKey is the logical identity of a record: its normalized title, or for untitled records a key built
// from the remote id and input position so unrelated untitled posts never merge.
func GroupKey(rec models.RawActivityRecord, position int) string {
	if key := shared.NormalizeTitleKey(rec.Title); key != "" {
		return key
	}
	return fmt.Sprintf("untitled:%s:%d", strings.TrimSpace(rec.RemoteID), position)
}
