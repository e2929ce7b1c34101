// Package mock provides in-memory implementations of the audio device
// interfaces for tests. The input device plays scripted frames; the output
// device records scheduled buffers and lets the test drive the clock and
// fire completions explicitly.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/studyloop/voxtutor/pkg/audio"
)

// Compile-time assertions that the mocks satisfy the device interfaces.
var _ audio.InputDevice = (*Input)(nil)
var _ audio.OutputDevice = (*Output)(nil)

// ── Input ─────────────────────────────────────────────────────────────────────

// Input is a scripted [audio.InputDevice]. Tests push frames via Emit and
// end the stream with Close.
type Input struct {
	// StartErr, when non-nil, is returned by Start. Use it to simulate a
	// denied or missing microphone.
	StartErr error

	mu         sync.Mutex
	frames     chan audio.Frame
	started    bool
	closed     bool
	CloseCalls int
}

// NewInput creates an Input with a buffered frame channel.
func NewInput() *Input {
	return &Input{frames: make(chan audio.Frame, 64)}
}

// Start implements [audio.InputDevice].
func (in *Input) Start(_ context.Context) (<-chan audio.Frame, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.StartErr != nil {
		return nil, in.StartErr
	}
	in.started = true
	return in.frames, nil
}

// Emit pushes a frame to the stream. Blocks if the buffer is full.
func (in *Input) Emit(f audio.Frame) {
	in.frames <- f
}

// Started reports whether Start has been called successfully.
func (in *Input) Started() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.started
}

// Close implements [audio.InputDevice]. It closes the frame stream.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.CloseCalls++
	if !in.closed {
		in.closed = true
		close(in.frames)
	}
	return nil
}

// ── Output ────────────────────────────────────────────────────────────────────

// Scheduled records one buffer passed to [Output.Start].
type Scheduled struct {
	Buf     audio.Buffer
	At      time.Duration
	onDone  func()
	stopped bool
}

// Output is an [audio.OutputDevice] with a test-controlled clock.
type Output struct {
	// StartErr, when non-nil, is returned by Start.
	StartErr error

	mu         sync.Mutex
	now        time.Duration
	scheduled  []*Scheduled
	CloseCalls int
}

// NewOutput creates an Output with the clock at zero.
func NewOutput() *Output {
	return &Output{}
}

// Now implements [audio.OutputDevice].
func (o *Output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// SetNow moves the device clock. Only ever forward in real devices, but the
// mock does not enforce that.
func (o *Output) SetNow(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = d
}

// Start implements [audio.OutputDevice].
func (o *Output) Start(buf audio.Buffer, at time.Duration, onDone func()) (audio.Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StartErr != nil {
		return nil, o.StartErr
	}
	s := &Scheduled{Buf: buf, At: at, onDone: onDone}
	o.scheduled = append(o.scheduled, s)
	return &playback{out: o, s: s}, nil
}

// Close implements [audio.OutputDevice].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CloseCalls++
	return nil
}

// Calls returns a snapshot of every buffer ever scheduled, including
// stopped ones, in scheduling order.
func (o *Output) Calls() []Scheduled {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Scheduled, len(o.scheduled))
	for i, s := range o.scheduled {
		out[i] = *s
	}
	return out
}

// StoppedCount returns how many scheduled buffers have been stopped.
func (o *Output) StoppedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.scheduled {
		if s.stopped {
			n++
		}
	}
	return n
}

// CompleteNext fires the completion callback of the oldest scheduled buffer
// that has not yet completed or been stopped. Returns false when nothing is
// pending. The callback runs on the caller's goroutine, outside the mock's
// lock.
func (o *Output) CompleteNext() bool {
	o.mu.Lock()
	var done func()
	for _, s := range o.scheduled {
		if s.onDone != nil && !s.stopped {
			done = s.onDone
			s.onDone = nil
			break
		}
	}
	o.mu.Unlock()

	if done == nil {
		return false
	}
	done()
	return true
}

// CompleteAll fires every outstanding completion callback in order.
func (o *Output) CompleteAll() {
	for o.CompleteNext() {
	}
}

type playback struct {
	out *Output
	s   *Scheduled
}

func (p *playback) Stop() {
	p.out.mu.Lock()
	p.s.stopped = true
	p.s.onDone = nil
	p.out.mu.Unlock()
}
