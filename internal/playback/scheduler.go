// Package playback schedules synthesised speech chunks for gapless output.
//
// Chunks arrive as s16le PCM, are decoded to float32 buffers, and are
// queued on the output device at a write cursor that only moves forward:
// each buffer starts where the previous one ends, or at the device clock's
// current position when the queue has drained. An interruption stops every
// pending buffer and rewinds the cursor so the next turn starts fresh.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studyloop/voxtutor/pkg/audio"
)

// Scheduler queues decoded audio buffers on an [audio.OutputDevice]. All
// exported methods are safe for concurrent use.
type Scheduler struct {
	out  audio.OutputDevice
	rate int

	onSpeaking func()
	onDrained  func()

	mu      sync.Mutex
	cursor  time.Duration
	pending map[*entry]struct{}
	closed  bool
}

type entry struct {
	handle audio.Playback
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithOnSpeaking registers a callback fired when the pending set goes from
// empty to non-empty, i.e. the tutor starts speaking.
func WithOnSpeaking(fn func()) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// WithOnDrained registers a callback fired when the last pending buffer
// finishes playing naturally. It does not fire on [Scheduler.Interrupt].
func WithOnDrained(fn func()) Option {
	return func(s *Scheduler) { s.onDrained = fn }
}

// New creates a Scheduler that decodes chunks at the given sample rate and
// plays them on out. The Scheduler owns out and closes it in Close.
func New(out audio.OutputDevice, rate int, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:     out,
		rate:    rate,
		pending: make(map[*entry]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue decodes pcm and schedules it at the current write cursor.
// Zero-length chunks are ignored. A decode failure is returned to the
// caller for logging; nothing is scheduled and the cursor is untouched.
func (s *Scheduler) Enqueue(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		return fmt.Errorf("playback: decode chunk: %w", err)
	}
	buf := audio.Buffer{Samples: samples, Rate: s.rate}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("playback: scheduler closed")
	}

	// Never schedule in the past: a drained queue leaves the cursor
	// behind the device clock.
	if now := s.out.Now(); s.cursor < now {
		s.cursor = now
	}

	e := &entry{}
	handle, err := s.out.Start(buf, s.cursor, func() { s.complete(e) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("playback: schedule chunk: %w", err)
	}
	e.handle = handle

	wasIdle := len(s.pending) == 0
	s.pending[e] = struct{}{}
	s.cursor += buf.Duration()
	s.mu.Unlock()

	if wasIdle && s.onSpeaking != nil {
		s.onSpeaking()
	}
	return nil
}

// complete removes a finished buffer from the pending set. Entries already
// removed by Interrupt or Close are ignored.
func (s *Scheduler) complete(e *entry) {
	s.mu.Lock()
	if _, ok := s.pending[e]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, e)
	drained := len(s.pending) == 0 && !s.closed
	s.mu.Unlock()

	if drained && s.onDrained != nil {
		s.onDrained()
	}
}

// Interrupt stops every pending buffer, clears the queue, and rewinds the
// write cursor to zero so chunks of the next turn schedule fresh against
// the device clock. The drained callback does not fire.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopped := make([]audio.Playback, 0, len(s.pending))
	for e := range s.pending {
		if e.handle != nil {
			stopped = append(stopped, e.handle)
		}
	}
	s.pending = make(map[*entry]struct{})
	s.cursor = 0
	s.mu.Unlock()

	for _, h := range stopped {
		h.Stop()
	}
	if len(stopped) > 0 {
		slog.Debug("playback: interrupted", "stopped", len(stopped))
	}
}

// PendingCount returns the number of buffers scheduled but not yet
// finished.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops all pending playback and closes the output device.
// Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopped := make([]audio.Playback, 0, len(s.pending))
	for e := range s.pending {
		if e.handle != nil {
			stopped = append(stopped, e.handle)
		}
	}
	s.pending = make(map[*entry]struct{})
	s.mu.Unlock()

	for _, h := range stopped {
		h.Stop()
	}
	return s.out.Close()
}
