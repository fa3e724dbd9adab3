package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/crosspost/internal/models"
)

var _ list.Item = timelineItem{}

// timelineItem wraps [models.TimelineEntry] to implement [list.Item].
type timelineItem struct {
	entry models.TimelineEntry
}

func (i timelineItem) FilterValue() string { return i.entry.Title }
func (i timelineItem) Title() string       { return i.entry.Title }
func (i timelineItem) Description() string {
	desc := fmt.Sprintf("%s • %s", strings.Join(i.entry.PlatformLabels, ", "), dateLabel(i.entry.MostRecent))
	if n := i.entry.Views; n > 0 {
		desc = fmt.Sprintf("%s • %d views", desc, n)
	}
	return desc
}

func toItems(entries []models.TimelineEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = timelineItem{entry: e}
	}
	return items
}

func dateLabel(ts models.Timestamp) string {
	t, ok := ts.Get()
	if !ok {
		return "date unknown"
	}
	return t.Local().Format("Jan 2, 2006")
}
