package tasks

import "github.com/desertthunder/crosspost/internal/models"

// Page returns entries [(pageNumber-1)*pageSize, pageNumber*pageSize), clamped to what is available.
// Page numbers start at 1; invalid arguments and pages past the end yield an empty slice.
func Page(entries []models.TimelineEntry, pageNumber, pageSize int) []models.TimelineEntry {
	if pageNumber < 1 || pageSize < 1 {
		return []models.TimelineEntry{}
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(entries) || start < 0 {
		return []models.TimelineEntry{}
	}
	end := min(start+pageSize, len(entries))
	return entries[start:end:end]
}

// PageCount returns the number of pages needed for total entries, counting a trailing partial page.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
