package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studyloop/voxtutor/internal/capture"
	"github.com/studyloop/voxtutor/pkg/audio"
	audiomock "github.com/studyloop/voxtutor/pkg/audio/mock"
)

// recorder collects chunks passed to the pipeline's send function.
type recorder struct {
	mu     sync.Mutex
	chunks [][]byte
	errOn  int // 1-based index of the call that fails; 0 = never
	calls  int
}

func (r *recorder) send(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.errOn != 0 && r.calls == r.errOn {
		return errors.New("transport hiccup")
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	r.chunks = append(r.chunks, buf)
	return nil
}

func (r *recorder) got() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.chunks))
	copy(out, r.chunks)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPipeline_EncodesAndForwardsInOrder(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	rec := &recorder{}

	p, err := capture.Start(context.Background(), in, 16000, rec.send)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	in.Emit(audio.Frame{Samples: []float32{0.5}, Rate: 16000})
	in.Emit(audio.Frame{Samples: []float32{-1}, Rate: 16000})

	waitFor(t, func() bool { return len(rec.got()) == 2 })

	got := rec.got()
	if string(got[0]) != string([]byte{0x00, 0x40}) {
		t.Errorf("chunk[0] = %v; want [0 64]", got[0])
	}
	if string(got[1]) != string([]byte{0x00, 0x80}) {
		t.Errorf("chunk[1] = %v; want [0 128]", got[1])
	}
}

func TestPipeline_ResamplesForeignRate(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	rec := &recorder{}

	p, err := capture.Start(context.Background(), in, 16000, rec.send)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	// 480 samples at 48kHz → 160 samples at 16kHz → 320 bytes.
	in.Emit(audio.Frame{Samples: make([]float32, 480), Rate: 48000})

	waitFor(t, func() bool { return len(rec.got()) == 1 })
	if got := len(rec.got()[0]); got != 320 {
		t.Errorf("resampled chunk = %d bytes; want 320", got)
	}
}

func TestPipeline_SendErrorDropsFrameOnly(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	rec := &recorder{errOn: 2}

	p, err := capture.Start(context.Background(), in, 16000, rec.send)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	for range 3 {
		in.Emit(audio.Frame{Samples: []float32{0.25}, Rate: 16000})
	}

	// Frame 2 fails; frames 1 and 3 still arrive.
	waitFor(t, func() bool { return len(rec.got()) == 2 })
}

func TestPipeline_SkipsEmptyFrames(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	rec := &recorder{}

	p, err := capture.Start(context.Background(), in, 16000, rec.send)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	in.Emit(audio.Frame{Rate: 16000})
	in.Emit(audio.Frame{Samples: []float32{0.1}, Rate: 16000})

	waitFor(t, func() bool { return len(rec.got()) == 1 })
}

func TestStart_DeviceFailure(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	in.StartErr = errors.New("permission denied")

	if _, err := capture.Start(context.Background(), in, 16000, func([]byte) error { return nil }); err == nil {
		t.Fatal("Start should propagate the device error")
	}
}

func TestClose_ReleasesDeviceAndIsIdempotent(t *testing.T) {
	t.Parallel()

	in := audiomock.NewInput()
	p, err := capture.Start(context.Background(), in, 16000, func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if in.CloseCalls != 1 {
		t.Errorf("device CloseCalls = %d; want 1", in.CloseCalls)
	}
}
