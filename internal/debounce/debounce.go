// Package debounce collapses bursts of changes into a single stabilized value.
//
// A [Debouncer] emits the latest pushed value once no new value has arrived for its delay.
// Every push restarts the timer, and nothing is emitted after [Debouncer.Close].
package debounce

import (
	"sync"
	"time"
)

// Clock schedules callbacks. The returned func cancels the callback and reports whether it was still pending.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}

// Debouncer delays emission of a value until input has been stable for a fixed duration.
type Debouncer[T any] struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	emit    func(T)
	value   T
	pending bool
	gen     uint64
	stop    func() bool
	closed  bool
}

// Option configures a [Debouncer].
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the system clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// New returns a debouncer that calls emit with the last pushed value, delay after the last push.
// emit runs on the timer's goroutine and never while the debouncer's lock is held.
func New[T any](delay time.Duration, emit func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{clock: o.clock, delay: delay, emit: emit}
}

// Push records v and restarts the idle timer.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.stop != nil {
		d.stop()
	}
	d.value = v
	d.pending = true
	d.gen++
	gen := d.gen
	d.stop = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race with Push, Cancel or Close carries a stale generation.
	if d.closed || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.stop = nil
	d.mu.Unlock()

	if d.emit != nil {
		d.emit(v)
	}
}

// Pending reports whether a value is waiting to be emitted.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops the pending value without emitting it, returning it if there was one.
func (d *Debouncer[T]) Cancel() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer[T]) cancelLocked() (T, bool) {
	var zero T
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.gen++
	if !d.pending {
		return zero, false
	}
	v := d.value
	d.value = zero
	d.pending = false
	return v, true
}

// Close cancels any pending timer. After Close, Push is a no-op and nothing is emitted.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}
