package sessionlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// recorderBuffer bounds the number of lines queued for persistence.
	// When full, new lines are dropped with a warning rather than
	// stalling the voice loop.
	recorderBuffer = 256

	// writeTimeout caps each store write.
	writeTimeout = 5 * time.Second
)

// Recorder writes transcript entries to a [Store] asynchronously. Record
// never blocks; a background goroutine performs the actual writes.
type Recorder struct {
	store     Store
	sessionID string

	queue     chan Entry
	done      chan struct{}
	closeOnce sync.Once
}

// NewRecorder starts a recorder persisting to store under sessionID.
// Close must be called to flush and stop the writer goroutine.
func NewRecorder(store Store, sessionID string) *Recorder {
	r := &Recorder{
		store:     store,
		sessionID: sessionID,
		queue:     make(chan Entry, recorderBuffer),
		done:      make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

// Record queues one entry for persistence. Non-blocking: when the queue is
// full the entry is dropped and a warning logged.
func (r *Recorder) Record(entry Entry) {
	select {
	case r.queue <- entry:
	default:
		slog.Warn("sessionlog: recorder queue full, dropping line", "session_id", r.sessionID)
	}
}

// writeLoop drains the queue until Close.
func (r *Recorder) writeLoop() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.WriteEntry(ctx, r.sessionID, entry); err != nil {
			slog.Warn("sessionlog: write entry failed", "session_id", r.sessionID, "err", err)
		}
		cancel()
	}
}

// Close flushes queued entries and stops the writer. Idempotent.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
	return nil
}
