// Package live defines the Provider interface for realtime conversational
// speech backends.
//
// A live provider wraps a bidirectional voice model service: the client
// streams microphone PCM up and receives synthesised speech, transcription
// deltas, and turn-control signals back on a single stateful session.
//
// The central abstraction is SessionHandle: audio goes up through
// SendAudio, and everything the server emits comes back as a typed [Event]
// on a single ordered channel. Sessions are long-lived (seconds to
// minutes). All implementations must be safe for concurrent use.
package live

import (
	"context"
	"time"
)

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice selects the prebuilt voice used for synthesised output.
	Voice string

	// Instructions is the system-level prompt that defines the assistant's
	// personality and behavioural constraints.
	Instructions string

	// InputTranscription asks the server to emit text transcriptions of
	// the user's speech as it is recognised.
	InputTranscription bool

	// OutputTranscription asks the server to emit text transcriptions of
	// the model's own audio output.
	OutputTranscription bool
}

// Capabilities describes static properties of a live provider.
type Capabilities struct {
	// InputSampleRate is the PCM sample rate (Hz) the provider expects on
	// SendAudio.
	InputSampleRate int

	// OutputSampleRate is the PCM sample rate (Hz) of AudioChunk events.
	OutputSampleRate int

	// MaxSessionDuration is the provider-imposed session lifetime limit.
	// Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the prebuilt voice names available for this provider.
	Voices []string
}

// ── Events ────────────────────────────────────────────────────────────────────

// Event is a message received from the server on an open session. The
// concrete types are [AudioChunk], [InputTranscript], [OutputTranscript],
// [Interrupted], [TurnComplete], and [Closed].
type Event interface {
	liveEvent()
}

// AudioChunk carries one block of synthesised speech as raw s16le PCM at
// the provider's output sample rate.
type AudioChunk struct {
	PCM []byte
}

// InputTranscript is a transcription delta of the user's speech.
type InputTranscript struct {
	Text string
}

// OutputTranscript is a transcription delta of the model's spoken output.
type OutputTranscript struct {
	Text string
}

// Interrupted signals that the server detected the user speaking over the
// model and aborted the in-flight response. Audio chunks already delivered
// belong to the aborted turn and should be discarded.
type Interrupted struct{}

// TurnComplete signals that the model finished generating the current
// response turn.
type TurnComplete struct{}

// Closed is the final event on a session's event channel. Err is nil when
// the session ended cleanly (local Close) and non-nil when the connection
// failed.
type Closed struct {
	Err error
}

func (AudioChunk) liveEvent()       {}
func (InputTranscript) liveEvent()  {}
func (OutputTranscript) liveEvent() {}
func (Interrupted) liveEvent()      {}
func (TurnComplete) liveEvent()     {}
func (Closed) liveEvent()           {}

// ── Session ───────────────────────────────────────────────────────────────────

// SessionHandle represents an open live session. It is an interface so
// that test code can supply scripted implementations without a network
// connection.
//
// The session is the hot path of the voice loop — every method must
// return quickly. All methods must be safe for concurrent use. Callers
// must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM chunk (s16le, mono, at the provider's
	// input sample rate) for processing. Returns an error if the session
	// is closed or the transport rejects the chunk.
	SendAudio(pcm []byte) error

	// Events returns the ordered stream of server events. The channel is
	// closed after a [Closed] event has been delivered. Consumers must
	// drain the channel promptly to avoid stalling the receive loop.
	Events() <-chan Event

	// Close terminates the session and closes the event channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over a realtime speech backend.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned handle accepts audio immediately; chunks sent before the
	// server acknowledges the setup are buffered and flushed in order.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() Capabilities
}
