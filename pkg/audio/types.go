// Package audio defines the audio primitives shared by the capture and
// playback pipelines: the Frame type carried over channels, the PCM16
// codec used on the wire, and the device interfaces that abstract the
// host sound hardware.
package audio

import "time"

// Frame is a single block of captured audio flowing through the pipeline.
// Samples are mono float32 values in the nominal range [-1, 1].
type Frame struct {
	// Samples holds the raw sample data for this frame.
	Samples []float32

	// Rate is the sample rate in Hz (e.g. 16000 for model input).
	Rate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 || len(f.Samples) == 0 {
		return 0
	}
	return time.Duration(int64(len(f.Samples)) * int64(time.Second) / int64(f.Rate))
}

// Buffer is a block of decoded samples ready to be handed to an output
// device. Samples are mono float32 values in [-1, 1].
type Buffer struct {
	Samples []float32
	Rate    int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Rate <= 0 || len(b.Samples) == 0 {
		return 0
	}
	return time.Duration(int64(len(b.Samples)) * int64(time.Second) / int64(b.Rate))
}
