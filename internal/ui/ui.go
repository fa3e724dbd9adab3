package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/tasks"
)

// DefaultPageSize is the number of entries per page.
const DefaultPageSize = 10

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	TimelineView
	DetailView
)

// Source produces the reconciled timeline. [tasks.ActivityEngine] implements it.
type Source interface {
	Timeline(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]models.TimelineEntry, error)
	Refresh(ctx context.Context, scope string, progress chan<- tasks.ProgressUpdate) ([]models.TimelineEntry, error)
}

// Options configures a [Model].
type Options struct {
	PageSize int
	Scope    string             // sync scope used by the sync key
	Open     func(string) error // opens a post URL; the open key is disabled when nil
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	source   Source
	opts     Options
	view     ViewState
	width    int
	height   int
	entries  []models.TimelineEntry
	list     list.Model
	pager    paginator.Model
	spinner  spinner.Model
	progress tasks.ProgressUpdate
	selected *models.TimelineEntry
	status   string
	err      error
	help     help.Model
	keys     keyMap

	progressChan chan tasks.ProgressUpdate
	doneChan     chan timelineMsg
}

// NewModel creates a new TUI model reading from source.
func NewModel(ctx context.Context, source Source, opts Options) *Model {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Scope == "" {
		opts.Scope = "all"
	}

	pager := paginator.New()
	pager.Type = paginator.Dots
	pager.PerPage = opts.PageSize
	pager.ActiveDot = styles.ok.Render("•")
	pager.InactiveDot = styles.help.Render("•")

	l := list.New(nil, list.NewDefaultDelegate(), 80, 30)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.Title = "Activity"

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:     ctx,
		source:  source,
		opts:    opts,
		view:    LoadingView,
		list:    l,
		pager:   pager,
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the first timeline load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(false))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case timelineMsg:
		m.progressChan, m.doneChan = nil, nil
		m.view = TimelineView
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.setEntries(msg.entries)
		m.status = fmt.Sprintf("%d posts", len(msg.entries))
		if msg.synced {
			m.status = "Synced • " + m.status
		}
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.status = styles.warn.Render(fmt.Sprintf("Could not open %s: %v", msg.url, msg.err))
		} else {
			m.status = "Opened " + msg.url
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TimelineView:
			return m.handleTimelineKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case TimelineView:
		return m.renderTimeline()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

// Page returns the 1-based page currently shown.
func (m *Model) Page() int {
	return m.pager.Page + 1
}

func (m *Model) handleTimelineKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		m.pager.NextPage()
		m.syncPage()
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.pager.PrevPage()
		m.syncPage()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if e, ok := m.current(); ok {
			m.selected = &e
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.open):
		if e, ok := m.current(); ok {
			return m, m.openURL(e.URL)
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.view = LoadingView
		return m, tea.Batch(m.spinner.Tick, m.load(false))
	case key.Matches(msg, m.keys.sync):
		m.view = LoadingView
		return m, tea.Batch(m.spinner.Tick, m.load(true))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = TimelineView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.open):
		if m.selected != nil {
			return m, m.openURL(m.selected.URL)
		}
	}
	return m, nil
}

func (m *Model) setEntries(entries []models.TimelineEntry) {
	m.entries = entries
	m.pager.TotalPages = max(1, tasks.PageCount(len(entries), m.pager.PerPage))
	if m.pager.Page >= m.pager.TotalPages {
		m.pager.Page = m.pager.TotalPages - 1
	}
	m.syncPage()
}

// syncPage loads the current page's entries into the list.
func (m *Model) syncPage() {
	page := tasks.Page(m.entries, m.Page(), m.pager.PerPage)
	m.list.SetItems(toItems(page))
	m.list.Select(0)
	m.list.Title = fmt.Sprintf("Activity • page %d/%d", m.Page(), m.pager.TotalPages)
}

func (m *Model) current() (models.TimelineEntry, bool) {
	item, ok := m.list.SelectedItem().(timelineItem)
	if !ok {
		return models.TimelineEntry{}, false
	}
	return item.entry, true
}

// load runs Timeline (or Refresh when sync is set) in the background, reporting progress until it returns.
func (m *Model) load(sync bool) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan timelineMsg, 1)
	m.progressChan, m.doneChan = progress, done
	m.progress = tasks.ProgressUpdate{}

	ctx, source, scope := m.ctx, m.source, m.opts.Scope
	go func() {
		var (
			entries []models.TimelineEntry
			err     error
		)
		if sync {
			entries, err = source.Refresh(ctx, scope, progress)
		} else {
			entries, err = source.Timeline(ctx, progress)
		}
		close(progress)
		done <- timelineMsg{entries: entries, err: err, synced: sync}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressMsg(update)
		}
		return <-done
	}
}

func (m *Model) openURL(url string) tea.Cmd {
	if m.opts.Open == nil || url == "" {
		return nil
	}
	open := m.opts.Open
	return func() tea.Msg {
		return openedMsg{url: url, err: open(url)}
	}
}

func (m *Model) renderLoading() string {
	phase := "Loading activity..."
	if m.progress.Message != "" {
		phase = m.progress.Message
	}
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), phase, m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderTimeline() string {
	var b strings.Builder
	if len(m.entries) == 0 && m.err == nil {
		b.WriteString(styles.title.Render("Activity"))
		b.WriteString("\nNo activity yet. Press s to sync.\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteString("\n")
		if m.pager.TotalPages > 1 {
			b.WriteString("  " + m.pager.View() + "\n")
		}
	}

	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	} else if m.status != "" {
		b.WriteString(styles.help.Render(m.status) + "\n")
	}

	keys := []key.Binding{m.keys.enter, m.keys.next, m.keys.prev, m.keys.reload, m.keys.sync}
	if m.opts.Open != nil {
		keys = append(keys, m.keys.open)
	}
	keys = append(keys, m.keys.quit)
	b.WriteString("\n" + m.help.ShortHelpView(keys))
	return b.String()
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	e := m.selected

	var b strings.Builder
	b.WriteString(styles.title.Render(e.Title) + "\n")
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(styles.label.Render(label) + value + "\n")
	}

	badges := make([]string, len(e.PlatformLabels))
	for i, l := range e.PlatformLabels {
		badges[i] = styles.badge.Render(l)
	}
	row("Platforms", strings.Join(badges, " "))
	row("Date", dateLabel(e.MostRecent))
	row("Status", e.Status)
	row("URL", e.URL)
	row("Metrics", fmt.Sprintf("%d views • %d reactions • %d comments", e.Views, e.Reactions, e.Comments))
	row("Draft", e.OriginDraftID)

	keys := []key.Binding{m.keys.back}
	if m.opts.Open != nil && e.URL != "" {
		keys = append(keys, m.keys.open)
	}
	keys = append(keys, m.keys.quit)
	b.WriteString("\n" + m.help.ShortHelpView(keys))
	return b.String()
}
