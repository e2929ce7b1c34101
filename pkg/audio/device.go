package audio

import (
	"context"
	"time"
)

// InputDevice captures microphone audio as a stream of [Frame] values.
//
// Implementations own the underlying capture context; Close releases it.
// The frames channel is closed when the device stops, either via Close or
// an unrecoverable device error.
type InputDevice interface {
	// Start opens the device and begins capture. The returned channel
	// carries captured frames until the device is closed. Start may be
	// called at most once; a failure to acquire the hardware is reported
	// here (not at construction time).
	Start(ctx context.Context) (<-chan Frame, error)

	// Close stops capture and releases the device. Idempotent.
	Close() error
}

// Playback is a handle to one buffer scheduled on an [OutputDevice].
type Playback interface {
	// Stop cancels the scheduled buffer. The completion callback passed to
	// Start is not invoked after Stop returns.
	Stop()
}

// OutputDevice is a clocked playback sink. Buffers are scheduled at
// absolute positions on the device's own monotonic timeline, which lets a
// caller queue consecutive buffers back to back without gaps.
//
// Completion callbacks are invoked asynchronously, never from inside
// Start. Implementations must be safe for concurrent use.
type OutputDevice interface {
	// Now returns the current position of the device clock.
	Now() time.Duration

	// Start schedules buf to begin playing at the clock position at. The
	// onDone callback fires once when the buffer finishes playing
	// naturally; it does not fire if the playback is stopped first.
	Start(buf Buffer, at time.Duration, onDone func()) (Playback, error)

	// Close stops all playback and releases the device. Idempotent.
	Close() error
}
