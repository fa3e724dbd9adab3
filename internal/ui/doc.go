// Package ui implements the activity timeline browser using bubbletea's Elm architecture.
//
// The [Model] moves between three views:
//  1. [LoadingView] : spinner plus the latest progress message while the timeline loads or syncs
//  2. [TimelineView] : one page of reconciled entries, paged with bubbles/paginator
//  3. [DetailView] : every field of the selected entry
//
// Loads run in a goroutine that reports through a progress channel; the result arrives as a single message
// once the channel closes, so the model is only mutated inside Update.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, o, r, s, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
