// Package sessionlog persists completed tutoring-session transcript lines.
//
// A [Store] is the durable backend (PostgreSQL in production, [MemStore]
// in tests); a [Recorder] decouples the voice hot path from storage
// latency by writing asynchronously.
package sessionlog

import (
	"context"
	"time"
)

// Entry is one persisted transcript line.
type Entry struct {
	// Sender is who produced the line ("user" or "tutor").
	Sender string

	// Text is the transcript text.
	Text string

	// Timestamp is when the line was completed.
	Timestamp time.Time
}

// Store persists transcript entries grouped by session. Implementations
// must be safe for concurrent use.
type Store interface {
	// WriteEntry appends entry to the log of sessionID.
	WriteEntry(ctx context.Context, sessionID string, entry Entry) error

	// Recent returns up to limit entries of sessionID, newest last.
	// limit <= 0 means no limit.
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}
