// Package transcript keeps the conversation text of a tutoring session as
// a bounded, append-only log. The log retains only the most recent lines;
// an observer callback lets a UI or recorder react to each append.
package transcript

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of lines retained when none is given.
const DefaultCapacity = 64

// Sender identifies who produced a transcript line.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderTutor Sender = "tutor"
)

// Line is one completed transcript line.
type Line struct {
	Sender Sender
	Text   string
	At     time.Time
}

// Log is a bounded append-only transcript. When the capacity is exceeded
// the oldest line is discarded. All methods are safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	lines    []Line
	capacity int
	onAppend func(Line)
}

// NewLog creates a Log keeping at most capacity lines. A non-positive
// capacity falls back to [DefaultCapacity].
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// OnAppend registers a callback invoked for every appended line. Only one
// callback can be active; calling OnAppend again replaces it. The callback
// runs on the appender's goroutine and must not call back into the Log.
func (l *Log) OnAppend(fn func(Line)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}

// Append adds a line, evicting the oldest when the log is full. Empty text
// is ignored.
func (l *Log) Append(sender Sender, text string) {
	if text == "" {
		return
	}
	line := Line{Sender: sender, Text: text, At: time.Now()}

	l.mu.Lock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.capacity {
		l.lines = l.lines[len(l.lines)-l.capacity:]
	}
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(line)
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (l *Log) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of retained lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Clear drops every retained line.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}
