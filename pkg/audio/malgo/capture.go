package malgo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/studyloop/voxtutor/pkg/audio"
)

var _ audio.InputDevice = (*Capture)(nil)

// defaultFrameSize is the capture period in samples. 256ms at 16kHz keeps
// outbound envelopes around 8KiB, matching the chunk size the model
// endpoint expects.
const defaultFrameSize = 4096

// Capture is a microphone [audio.InputDevice] backed by miniaudio. The
// device is opened lazily in Start so that acquisition failures (no
// microphone, no permission) surface to the caller instead of at
// construction time.
type Capture struct {
	rate      int
	frameSize uint32

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	frames  chan audio.Frame
	started bool
	closed  bool
	opened  time.Time
}

// CaptureOption configures a [Capture].
type CaptureOption func(*Capture)

// WithFrameSize overrides the capture period in samples per frame.
func WithFrameSize(samples int) CaptureOption {
	return func(c *Capture) {
		if samples > 0 {
			c.frameSize = uint32(samples)
		}
	}
}

// NewCapture creates a capture device that delivers mono float32 frames at
// the given sample rate. miniaudio performs any hardware-rate conversion.
func NewCapture(rate int, opts ...CaptureOption) *Capture {
	c := &Capture{
		rate:      rate,
		frameSize: defaultFrameSize,
		frames:    make(chan audio.Frame, 32),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start implements [audio.InputDevice]. It opens the default capture
// device and begins delivering frames on the returned channel. Frames are
// dropped (with a warning) when the consumer falls behind.
func (c *Capture) Start(ctx context.Context) (<-chan audio.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("malgo capture: device closed")
	}
	if c.started {
		return nil, fmt.Errorf("malgo capture: already started")
	}

	mctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("malgo capture: init context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(c.rate)
	devCfg.PeriodSizeInFrames = c.frameSize

	opened := time.Now()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			frame := audio.Frame{
				Samples:   bytesToF32(input),
				Rate:      c.rate,
				Timestamp: time.Since(opened),
			}
			select {
			case c.frames <- frame:
			default:
				slog.Warn("malgo capture: frame buffer full, dropping frame")
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, devCfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("malgo capture: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("malgo capture: start device: %w", err)
	}

	c.mctx = mctx
	c.device = device
	c.started = true
	c.opened = opened

	// Release the device if the caller's context ends first.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	return c.frames, nil
}

// Close implements [audio.InputDevice]. It stops the device, releases the
// malgo context, and closes the frame channel. Idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.mctx != nil {
		c.mctx.Uninit()
		c.mctx.Free()
		c.mctx = nil
	}
	close(c.frames)
	return nil
}
