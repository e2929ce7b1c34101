// Package capture moves microphone frames to the session channel. Frames
// are resampled to the model's input rate when the device delivers a
// different one, encoded to s16le PCM, and handed to the send function in
// capture order. Per-frame failures are logged and skipped; the stream
// keeps flowing.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/studyloop/voxtutor/pkg/audio"
)

// SendFunc delivers one encoded PCM chunk upstream.
type SendFunc func(pcm []byte) error

// Pipeline owns an [audio.InputDevice] for the lifetime of a session and
// forwards its frames through a single goroutine, preserving order.
type Pipeline struct {
	device audio.InputDevice
	send   SendFunc
	rate   int

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Start opens the input device and begins forwarding frames encoded at
// targetRate. The device acquisition error (no microphone, permission
// denied) is returned directly so the caller can classify it; nothing is
// running in that case.
func Start(ctx context.Context, device audio.InputDevice, targetRate int, send SendFunc) (*Pipeline, error) {
	frames, err := device.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: open input device: %w", err)
	}

	p := &Pipeline{
		device: device,
		send:   send,
		rate:   targetRate,
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.loop(frames)
	return p, nil
}

// loop is the single forwarding goroutine. It exits when the device's
// frame channel closes or the pipeline is closed.
func (p *Pipeline) loop(frames <-chan audio.Frame) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			go audio.Drain(frames)
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			p.forward(frame)
		}
	}
}

// forward encodes one frame and sends it. Failures never stop the stream:
// the frame is dropped and the next one proceeds.
func (p *Pipeline) forward(frame audio.Frame) {
	samples := frame.Samples
	if frame.Rate > 0 && frame.Rate != p.rate {
		samples = audio.Resample(samples, frame.Rate, p.rate)
	}

	pcm := audio.EncodePCM16(samples)
	if len(pcm) == 0 {
		return
	}

	if err := p.send(pcm); err != nil {
		slog.Warn("capture: send frame failed, dropping", "bytes", len(pcm), "err", err)
	}
}

// Close stops forwarding and releases the input device. Idempotent.
func (p *Pipeline) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.device.Close()
		p.wg.Wait()
	})
	return err
}
