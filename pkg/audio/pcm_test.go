package audio_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/studyloop/voxtutor/pkg/audio"
)

func TestEncodePCM16_ScalesByPowerOfTwo(t *testing.T) {
	t.Parallel()

	got := audio.EncodePCM16([]float32{0, 0.5, -0.5, -1})
	want := []byte{
		0x00, 0x00, // 0
		0x00, 0x40, // 16384
		0x00, 0xC0, // -16384
		0x00, 0x80, // -32768
	}
	if string(got) != string(want) {
		t.Errorf("EncodePCM16 = %v; want %v", got, want)
	}
}

func TestEncodePCM16_TruncatesTowardZero(t *testing.T) {
	t.Parallel()

	// 0.0001 * 32768 = 3.2768 → 3; the negative mirror truncates to -3,
	// not -4.
	got := audio.EncodePCM16([]float32{0.0001, -0.0001})
	want := []byte{0x03, 0x00, 0xFD, 0xFF}
	if string(got) != string(want) {
		t.Errorf("EncodePCM16 = %v; want %v", got, want)
	}
}

func TestEncodePCM16_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	got := audio.EncodePCM16([]float32{1.0, 2.5, -3.0})
	want := []byte{
		0xFF, 0x7F, // 32767 (1.0 * 32768 clamps)
		0xFF, 0x7F,
		0x00, 0x80, // -32768
	}
	if string(got) != string(want) {
		t.Errorf("EncodePCM16 = %v; want %v", got, want)
	}
}

func TestEncodePCM16_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := audio.EncodePCM16(nil); len(got) != 0 {
		t.Errorf("EncodePCM16(nil) = %v; want empty", got)
	}
}

func TestDecodePCM16_OddLength(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodePCM16([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, audio.ErrOddPCMLength) {
		t.Fatalf("DecodePCM16 odd length err = %v; want ErrOddPCMLength", err)
	}
}

func TestDecodePCM16_Values(t *testing.T) {
	t.Parallel()

	got, err := audio.DecodePCM16([]byte{0x00, 0x40, 0x00, 0x80, 0xFF, 0x7F})
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	want := []float32{0.5, -1, float32(32767) / 32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %v; want %v", i, got[i], want[i])
		}
	}
}

func TestPCM16_RoundTripQuantisation(t *testing.T) {
	t.Parallel()

	in := make([]float32, 1024)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 17.0))
	}

	out, err := audio.DecodePCM16(audio.EncodePCM16(in))
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip length = %d; want %d", len(out), len(in))
	}

	const step = 1.0 / 32768
	for i := range in {
		if diff := math.Abs(float64(in[i] - out[i])); diff > step {
			t.Fatalf("sample[%d]: |%v - %v| = %v exceeds one quantisation step", i, in[i], out[i], diff)
		}
	}
}

func TestResample_SameRateUnchanged(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3}
	got := audio.Resample(in, 16000, 16000)
	if &got[0] != &in[0] {
		t.Error("Resample with equal rates should return the input slice")
	}
}

func TestResample_Downsamples(t *testing.T) {
	t.Parallel()

	in := make([]float32, 480) // 10ms at 48kHz
	got := audio.Resample(in, 48000, 16000)
	if len(got) != 160 {
		t.Errorf("resampled length = %d; want 160", len(got))
	}
}

func TestResample_Interpolates(t *testing.T) {
	t.Parallel()

	// Doubling the rate of a ramp should produce midpoints.
	got := audio.Resample([]float32{0, 1}, 1, 2)
	if len(got) != 4 {
		t.Fatalf("resampled length = %d; want 4", len(got))
	}
	if got[1] != 0.5 {
		t.Errorf("interpolated sample = %v; want 0.5", got[1])
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := audio.Frame{Samples: make([]float32, 16000), Rate: 16000}
	if got := f.Duration(); got != time.Second {
		t.Errorf("Duration = %v; want 1s", got)
	}
	if got := (audio.Frame{}).Duration(); got != 0 {
		t.Errorf("zero frame Duration = %v; want 0", got)
	}
}

func TestBufferDuration(t *testing.T) {
	t.Parallel()

	b := audio.Buffer{Samples: make([]float32, 12000), Rate: 24000}
	if got := b.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %v; want 500ms", got)
	}
}
