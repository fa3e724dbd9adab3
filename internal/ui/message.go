package ui

import (
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/tasks"
)

// timelineMsg carries the result of a load or refresh.
type timelineMsg struct {
	entries []models.TimelineEntry
	err     error
	synced  bool
}

type progressMsg tasks.ProgressUpdate

type openedMsg struct {
	url string
	err error
}
