package debounce

import (
	"sync"
	"testing"
	"time"

	th "github.com/desertthunder/crosspost/internal/testing"
)

type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	at     []time.Time
	clock  Clock
}

func (r *recorder[T]) emit(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
	r.at = append(r.at, r.clock.Now())
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func TestDebouncer(t *testing.T) {
	const delay = time.Second
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("emits only the final value of a burst", func(t *testing.T) {
		clock := th.NewFakeClock(start)
		rec := &recorder[string]{clock: clock}
		d := New(delay, rec.emit, WithClock(clock))

		for _, v := range []string{"H", "He", "Hel", "Hell", "Hello"} {
			d.Push(v)
			clock.Advance(delay - time.Millisecond)
		}
		if got := rec.snapshot(); len(got) != 0 {
			t.Fatalf("expected no emission during burst, got %v", got)
		}

		clock.Advance(time.Millisecond)
		got := rec.snapshot()
		if len(got) != 1 || got[0] != "Hello" {
			t.Fatalf("expected single emission of final value, got %v", got)
		}

		lastPush := start.Add(4 * (delay - time.Millisecond))
		if want := lastPush.Add(delay); !rec.at[0].Equal(want) {
			t.Errorf("emitted at %v, want %v", rec.at[0], want)
		}

		clock.Advance(10 * delay)
		if got := rec.snapshot(); len(got) != 1 {
			t.Errorf("expected exactly one emission, got %v", got)
		}
	})

	t.Run("separate bursts emit separately", func(t *testing.T) {
		clock := th.NewFakeClock(start)
		rec := &recorder[int]{clock: clock}
		d := New(delay, rec.emit, WithClock(clock))

		d.Push(1)
		clock.Advance(delay)
		d.Push(2)
		clock.Advance(delay)

		got := rec.snapshot()
		if len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Errorf("expected [1 2], got %v", got)
		}
	})

	t.Run("close cancels pending emission", func(t *testing.T) {
		clock := th.NewFakeClock(start)
		rec := &recorder[string]{clock: clock}
		d := New(delay, rec.emit, WithClock(clock))

		d.Push("draft")
		d.Close()
		clock.Advance(2 * delay)
		d.Push("after close")
		clock.Advance(2 * delay)

		if got := rec.snapshot(); len(got) != 0 {
			t.Errorf("expected nothing after close, got %v", got)
		}
		if clock.Pending() != 0 {
			t.Errorf("expected no scheduled timers, got %d", clock.Pending())
		}
	})

	t.Run("cancel returns pending value", func(t *testing.T) {
		clock := th.NewFakeClock(start)
		rec := &recorder[string]{clock: clock}
		d := New(delay, rec.emit, WithClock(clock))

		d.Push("x")
		if !d.Pending() {
			t.Fatal("expected pending value")
		}
		v, ok := d.Cancel()
		if !ok || v != "x" {
			t.Errorf("Cancel() = %q, %v", v, ok)
		}
		clock.Advance(delay)
		if got := rec.snapshot(); len(got) != 0 {
			t.Errorf("cancelled value was emitted: %v", got)
		}
		if _, ok := d.Cancel(); ok {
			t.Error("second cancel should find nothing")
		}
	})

	t.Run("system clock", func(t *testing.T) {
		done := make(chan string, 1)
		d := New(10*time.Millisecond, func(v string) { done <- v })
		d.Push("a")
		d.Push("b")
		select {
		case v := <-done:
			if v != "b" {
				t.Errorf("expected b, got %s", v)
			}
		case <-time.After(time.Second):
			t.Fatal("debouncer never fired")
		}
	})
}
