package tutor

// Status is the externally visible state of the tutoring session. Exactly
// one value holds at any time.
type Status string

const (
	// StatusIdle means no channel is open and capture is not running.
	StatusIdle Status = "idle"

	// StatusConnecting means a start was requested and the live channel is
	// being opened.
	StatusConnecting Status = "connecting"

	// StatusListening means the channel is open and capture is streaming,
	// with no playback scheduled.
	StatusListening Status = "listening"

	// StatusSpeaking means at least one playback buffer is scheduled or
	// playing.
	StatusSpeaking Status = "speaking"
)

// String returns the status name.
func (s Status) String() string { return string(s) }
