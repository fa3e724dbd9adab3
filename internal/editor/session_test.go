package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crosspost/internal/drafts"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/tasks"
	tu "github.com/desertthunder/crosspost/internal/testing"
)

type memBackend struct {
	mu     sync.Mutex
	stored map[string]models.DraftSnapshot
	puts   []models.DraftSnapshot
	gate   chan struct{} // holds writes open until closed
}

func (m *memBackend) GetDraft(_ context.Context, id string) (models.DraftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stored[id]
	if !ok {
		return models.DraftSnapshot{}, shared.ErrDraftNotFound
	}
	return s, nil
}

func (m *memBackend) PutDraft(_ context.Context, id string, s models.DraftSnapshot) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, s)
	m.stored[id] = s
	return nil
}

func (m *memBackend) written() []models.DraftSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DraftSnapshot(nil), m.puts...)
}

type stubPublisher struct {
	draftID string
	got     models.DraftSnapshot
	targets models.TargetSet
}

func (p *stubPublisher) PublishDraft(
	_ context.Context,
	draftID string,
	s models.DraftSnapshot,
	targets models.TargetSet,
	_ chan<- tasks.ProgressUpdate,
) (models.PublishBatchResult, error) {
	p.draftID, p.got, p.targets = draftID, s, targets
	return models.PublishBatchResult{Succeeded: targets}, nil
}

const delay = time.Second

func newSession(t *testing.T, b *memBackend) (*Session, *tu.FakeClock) {
	t.Helper()
	clock := tu.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := drafts.NewStore("d1", b)
	s := New(store, Options{Delay: delay, Clock: clock, Publisher: &stubPublisher{}})
	t.Cleanup(s.Close)
	return s, clock
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestSessionAutosave(t *testing.T) {
	ctx := context.Background()

	t.Run("burst of title edits saves once", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{}}
		s, clock := newSession(t, b)
		s.Open(ctx)

		for _, v := range []string{"H", "He", "Hello"} {
			s.SetTitle(v)
			clock.Advance(delay / 2)
		}
		settle(t, s)
		if n := len(b.written()); n != 0 {
			t.Fatalf("expected no save during burst, got %d", n)
		}

		clock.Advance(delay / 2)
		settle(t, s)
		puts := b.written()
		if len(puts) != 1 || puts[0].Title != "Hello" {
			t.Fatalf("expected one save of final title, got %+v", puts)
		}
		if s.Status() != models.StatusSaved {
			t.Errorf("expected saved, got %s", s.Status())
		}
	})

	t.Run("no autosave before hydration", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{"d1": {Title: "Stored"}}}
		s, clock := newSession(t, b)

		if err := s.SetTitle("typed before load"); !errors.Is(err, shared.ErrDraftNotReady) {
			t.Errorf("expected ErrDraftNotReady, got %v", err)
		}
		clock.Advance(delay)
		settle(t, s)
		if n := len(b.written()); n != 0 {
			t.Fatalf("unhydrated draft must not be saved, got %d writes", n)
		}

		got := s.Open(ctx)
		if got.Title != "Stored" {
			t.Errorf("expected stored title, got %q", got.Title)
		}
	})

	t.Run("edit during an in-flight save keeps the draft unsaved", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{}, gate: make(chan struct{})}
		s, clock := newSession(t, b)
		s.Open(ctx)

		s.SetTitle("First")
		clock.Advance(delay)
		if s.Status() != models.StatusSaving {
			t.Fatalf("expected saving, got %s", s.Status())
		}

		s.SetTitle("First, edited")
		close(b.gate)
		settle(t, s)
		if s.Status() != models.StatusUnsaved {
			t.Fatalf("expected unsaved while the newer title is pending, got %s", s.Status())
		}

		clock.Advance(delay)
		settle(t, s)
		puts := b.written()
		if len(puts) != 2 || puts[1].Title != "First, edited" {
			t.Fatalf("expected the edited title to be written, got %+v", puts)
		}
		if s.Status() != models.StatusSaved {
			t.Errorf("expected saved, got %s", s.Status())
		}
	})

	t.Run("reverted edit does not save", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{"d1": {Title: "Same"}}}
		s, clock := newSession(t, b)
		s.Open(ctx)

		s.SetTitle("Samex")
		s.SetTitle("Same")
		clock.Advance(delay)
		settle(t, s)
		if n := len(b.written()); n != 0 {
			t.Errorf("expected no writes, got %d", n)
		}
	})

	t.Run("any field change triggers a full snapshot save", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{}}
		s, clock := newSession(t, b)
		s.Open(ctx)

		s.SetTitle("Title")
		s.SetBody("<p>Body</p>")
		if err := s.AddTag("go"); err != nil {
			t.Fatalf("AddTag() error = %v", err)
		}
		s.SetTargets(models.TargetSet{"medium", "devto"})
		s.SetCover("https://cdn.example.com/c.png")
		clock.Advance(delay)
		settle(t, s)

		puts := b.written()
		if len(puts) == 0 {
			t.Fatal("expected at least one write")
		}
		last := puts[len(puts)-1]
		if !last.Equal(s.Snapshot()) {
			t.Errorf("last write %+v does not match session %+v", last, s.Snapshot())
		}
	})

	t.Run("close cancels pending autosave", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{}}
		s, clock := newSession(t, b)
		s.Open(ctx)

		s.SetBody("<p>unsaved</p>")
		s.Close()
		clock.Advance(2 * delay)
		if n := len(b.written()); n != 0 {
			t.Errorf("expected no writes after close, got %d", n)
		}
		if err := s.SetTitle("late"); !errors.Is(err, shared.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	})

	t.Run("SaveNow short-circuits the debounce", func(t *testing.T) {
		b := &memBackend{stored: map[string]models.DraftSnapshot{}}
		s, clock := newSession(t, b)
		s.Open(ctx)

		s.SetTitle("Manual")
		status, err := s.SaveNow(ctx)
		if err != nil || status != models.StatusSaved {
			t.Fatalf("SaveNow() = %s, %v", status, err)
		}
		clock.Advance(delay)
		settle(t, s)
		if n := len(b.written()); n != 1 {
			t.Errorf("expected exactly one write, got %d", n)
		}
	})
}

func TestSessionTags(t *testing.T) {
	b := &memBackend{stored: map[string]models.DraftSnapshot{}}
	s, _ := newSession(t, b)
	s.Open(context.Background())

	for _, tag := range []string{"go", "cli", "web", "api"} {
		if err := s.AddTag(tag); err != nil {
			t.Fatalf("AddTag(%q) error = %v", tag, err)
		}
	}

	tc := []struct {
		tag  string
		want error
	}{
		{tag: "more", want: shared.ErrTooManyTags},
		{tag: "go", want: shared.ErrDuplicateTag},
		{tag: " ", want: shared.ErrEmptyTag},
	}
	for _, tt := range tc {
		if err := s.AddTag(tt.tag); !errors.Is(err, tt.want) {
			t.Errorf("AddTag(%q) expected %v, got %v", tt.tag, tt.want, err)
		}
	}

	s.RemoveTag("cli")
	if got := s.Snapshot().Tags; len(got) != 3 || got[1] != "web" {
		t.Errorf("unexpected tags %v", got)
	}
}

func TestSessionPublish(t *testing.T) {
	b := &memBackend{stored: map[string]models.DraftSnapshot{}}
	pub := &stubPublisher{}
	store := drafts.NewStore("d1", b)
	s := New(store, Options{Clock: tu.NewFakeClock(time.Now()), Publisher: pub})
	s.Open(context.Background())

	s.SetTitle("Hello")
	s.SetTargets(models.ParseTargets("medium,devto"))
	res, err := s.Publish(context.Background(), nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if pub.draftID != "d1" || pub.got.Title != "Hello" || len(pub.targets) != 2 || len(res.Succeeded) != 2 {
		t.Errorf("publisher got %+v %v", pub.got, pub.targets)
	}

	s.Close()
	if _, err := s.Publish(context.Background(), nil); !errors.Is(err, shared.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}
