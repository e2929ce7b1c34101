// Package malgo implements the audio device interfaces on top of the
// miniaudio bindings (github.com/gen2brain/malgo). It provides a
// microphone [Capture] device and a clocked [Speaker] playback sink.
//
// Capture and playback each own a separate malgo context so the input and
// output sides can be opened and torn down independently.
package malgo

import (
	"encoding/binary"
	"math"

	"github.com/gen2brain/malgo"
)

// newContext initialises a malgo context with default backends.
func newContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext(nil, malgo.ContextConfig{}, nil)
}

// bytesToF32 reinterprets little-endian float32 PCM bytes as samples.
func bytesToF32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// f32ToBytes writes samples into dst as little-endian float32 PCM.
// dst must hold at least len(samples)*4 bytes.
func f32ToBytes(samples []float32, dst []byte) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}
