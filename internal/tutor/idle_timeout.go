package tutor

import (
	"sync"
	"time"
)

// idleTimer fires a callback after a period without audio activity. It is
// an external policy wrapping the session's stop: the timer never touches
// session state itself. A zero duration disables it entirely.
type idleTimer struct {
	d  time.Duration
	fn func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// newIdleTimer creates and arms an idle timer. With d <= 0 the returned
// timer is inert: Reset and Stop are no-ops.
func newIdleTimer(d time.Duration, fn func()) *idleTimer {
	t := &idleTimer{d: d, fn: fn}
	if d > 0 {
		t.timer = time.AfterFunc(d, fn)
	}
	return t
}

// Reset pushes the deadline out by the full idle duration. Called on every
// sign of activity (captured frames, inbound chunks).
func (t *idleTimer) Reset() {
	if t == nil || t.d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer.Reset(t.d)
}

// Stop disarms the timer. Idempotent.
func (t *idleTimer) Stop() {
	if t == nil || t.d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.timer.Stop()
}
