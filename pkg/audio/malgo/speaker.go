package malgo

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/studyloop/voxtutor/pkg/audio"
)

var _ audio.OutputDevice = (*Speaker)(nil)

// Speaker is a clocked [audio.OutputDevice] backed by miniaudio. The
// device clock is the number of samples rendered since Open; buffers are
// scheduled at absolute positions on that clock and mixed into the output
// stream by the render callback.
type Speaker struct {
	rate int

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	playhead int64 // samples rendered since Open
	queue    []*queued
	closed   bool
}

type queued struct {
	samples []float32
	start   int64 // absolute position in samples
	onDone  func()
	stopped bool
}

// NewSpeaker creates a playback sink rendering mono float32 at the given
// sample rate. Open must be called before scheduling buffers.
func NewSpeaker(rate int) *Speaker {
	return &Speaker{rate: rate}
}

// Open acquires the default playback device and starts the render clock.
func (s *Speaker) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("malgo speaker: device closed")
	}
	if s.device != nil {
		return nil
	}

	mctx, err := newContext()
	if err != nil {
		return fmt.Errorf("malgo speaker: init context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	devCfg.Playback.Format = malgo.FormatF32
	devCfg.Playback.Channels = 1
	devCfg.SampleRate = uint32(s.rate)

	callbacks := malgo.DeviceCallbacks{Data: s.render}

	device, err := malgo.InitDevice(mctx.Context, devCfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("malgo speaker: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("malgo speaker: start device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	return nil
}

// render mixes every scheduled buffer overlapping the current window into
// the output and fires completion callbacks for buffers that finished.
func (s *Speaker) render(output, _ []byte, frameCount uint32) {
	window := make([]float32, frameCount)

	s.mu.Lock()
	start := s.playhead
	end := start + int64(frameCount)

	var finished []func()
	remaining := s.queue[:0]
	for _, q := range s.queue {
		if q.stopped {
			continue
		}
		qEnd := q.start + int64(len(q.samples))
		if qEnd <= start {
			// Fully behind the playhead (scheduled in the past).
			if q.onDone != nil {
				finished = append(finished, q.onDone)
			}
			continue
		}
		lo := max(q.start, start)
		hi := min(qEnd, end)
		for i := lo; i < hi; i++ {
			v := window[i-start] + q.samples[i-q.start]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			window[i-start] = v
		}
		if qEnd <= end {
			if q.onDone != nil {
				finished = append(finished, q.onDone)
			}
			continue
		}
		remaining = append(remaining, q)
	}
	s.queue = remaining
	s.playhead = end
	s.mu.Unlock()

	f32ToBytes(window, output)

	// Completion callbacks run off the render thread.
	for _, done := range finished {
		go done()
	}
}

// Now implements [audio.OutputDevice].
func (s *Speaker) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.playhead * int64(time.Second) / int64(s.rate))
}

// Start implements [audio.OutputDevice]. The buffer must match the
// speaker's sample rate; it is resampled when it does not.
func (s *Speaker) Start(buf audio.Buffer, at time.Duration, onDone func()) (audio.Playback, error) {
	samples := buf.Samples
	if buf.Rate != s.rate {
		samples = audio.Resample(samples, buf.Rate, s.rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("malgo speaker: device closed")
	}
	if s.device == nil {
		return nil, fmt.Errorf("malgo speaker: device not open")
	}

	q := &queued{
		samples: samples,
		start:   int64(at) * int64(s.rate) / int64(time.Second),
		onDone:  onDone,
	}
	s.queue = append(s.queue, q)
	return &speakerPlayback{s: s, q: q}, nil
}

// Close implements [audio.OutputDevice]. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	device := s.device
	mctx := s.mctx
	s.device = nil
	s.mctx = nil
	s.queue = nil
	s.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if mctx != nil {
		mctx.Uninit()
		mctx.Free()
	}
	return nil
}

type speakerPlayback struct {
	s *Speaker
	q *queued
}

func (p *speakerPlayback) Stop() {
	p.s.mu.Lock()
	p.q.stopped = true
	p.q.onDone = nil
	p.s.mu.Unlock()
}
