// Package tutor coordinates the live tutoring session: it owns the session
// state machine (idle → connecting → listening ⇄ speaking), wires the
// capture pipeline and playback scheduler to the live channel, and exposes
// start/stop/status to the surrounding process.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/studyloop/voxtutor/internal/capture"
	"github.com/studyloop/voxtutor/internal/observe"
	"github.com/studyloop/voxtutor/internal/playback"
	"github.com/studyloop/voxtutor/internal/transcript"
	"github.com/studyloop/voxtutor/pkg/audio"
	"github.com/studyloop/voxtutor/pkg/provider/live"
	"github.com/studyloop/voxtutor/pkg/sessionlog"
)

// Sentinel errors for the two fatal session failure classes. Callers branch
// on these with [errors.Is] to pick a user-visible message.
var (
	// ErrPermission marks a microphone or speaker that could not be
	// acquired. Fatal to session start.
	ErrPermission = errors.New("audio device unavailable")

	// ErrConnection marks a live channel that failed to open or dropped
	// mid-session. Fatal to the current session; the user may retry.
	ErrConnection = errors.New("live channel failed")
)

// Manager runs at most one tutoring session at a time. All exported
// methods are safe for concurrent use.
type Manager struct {
	provider  live.Provider
	newInput  func() audio.InputDevice
	newOutput func() (audio.OutputDevice, error)
	store     sessionlog.Store
	metrics   *observe.Metrics
	log       *transcript.Log

	voice          string
	idleTimeout    time.Duration
	connectRetries int
	connectBackoff time.Duration
	maxBackoff     time.Duration

	// dialMu guards dialCancel, which aborts an in-flight connect. Held
	// without m.mu so Stop can reach a dial that Start is blocked on.
	dialMu     sync.Mutex
	dialCancel context.CancelFunc

	mu        sync.Mutex
	active    bool
	sessionID string
	startedAt time.Time
	recorder  *sessionlog.Recorder
	idle      *idleTimer
	lastErr   error

	// closers are called in reverse order during teardown.
	closers []func() error

	statusMu sync.Mutex
	status   Status
	onStatus func(Status)
}

// ManagerConfig holds all dependencies for a [Manager].
type ManagerConfig struct {
	// Provider is the live speech backend.
	Provider live.Provider

	// NewInput creates the microphone device for a session. Acquisition
	// errors surface when the capture pipeline starts the device.
	NewInput func() audio.InputDevice

	// NewOutput creates and opens the playback device for a session.
	NewOutput func() (audio.OutputDevice, error)

	// Store, when non-nil, receives completed transcript lines
	// asynchronously.
	Store sessionlog.Store

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Voice selects the tutor voice. Defaults to [DefaultVoice].
	Voice string

	// TranscriptLines bounds the in-memory transcript ring. Non-positive
	// values use [transcript.DefaultCapacity].
	TranscriptLines int

	// IdleTimeout stops the session after this long without audio
	// activity. Zero disables the policy.
	IdleTimeout time.Duration

	// ConnectRetries bounds dial attempts for the live channel. Defaults
	// to 3 if zero.
	ConnectRetries int

	// ConnectBackoff is the initial wait between dial attempts. Doubles
	// each attempt up to 5s. Defaults to 1s if zero.
	ConnectBackoff time.Duration
}

// Default dial retry parameters.
const (
	defaultConnectRetries = 3
	defaultConnectBackoff = 1 * time.Second
	defaultMaxBackoff     = 5 * time.Second
)

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = defaultConnectBackoff
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Manager{
		provider:       cfg.Provider,
		newInput:       cfg.NewInput,
		newOutput:      cfg.NewOutput,
		store:          cfg.Store,
		metrics:        metrics,
		log:            transcript.NewLog(cfg.TranscriptLines),
		voice:          voice,
		idleTimeout:    cfg.IdleTimeout,
		connectRetries: retries,
		connectBackoff: backoff,
		maxBackoff:     defaultMaxBackoff,
		status:         StatusIdle,
	}
}

// Start begins a new tutoring session for the named student. It opens the
// live channel (with bounded retries), acquires the playback device, and
// wires the capture pipeline — in that order, so capture never streams into
// a channel that is not open. Returns an error wrapping [ErrConnection] or
// [ErrPermission] when the session could not start; the state is back to
// idle in that case.
//
// Returns an error if a session is already active.
func (m *Manager) Start(ctx context.Context, studentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return fmt.Errorf("tutor: a session is already active (id=%s)", m.sessionID)
	}

	now := time.Now().UTC()
	sessionID := fmt.Sprintf("tutor-%s-%s",
		sanitizeID(SanitizeName(studentName)),
		now.Format("20060102T150405Z"),
	)

	m.setStatus(StatusConnecting)

	cfg := live.SessionConfig{
		Voice:               m.voice,
		Instructions:        BuildInstructions(studentName),
		InputTranscription:  true,
		OutputTranscription: true,
	}

	// The dial runs under its own cancellable context so Stop can abort a
	// connect in progress instead of waiting out retries and backoff.
	dialCtx, cancelDial := context.WithCancel(ctx)
	m.dialMu.Lock()
	m.dialCancel = cancelDial
	m.dialMu.Unlock()
	defer func() {
		m.dialMu.Lock()
		m.dialCancel = nil
		m.dialMu.Unlock()
		cancelDial()
	}()

	dialStart := time.Now()
	handle, err := m.connectWithBackoff(dialCtx, cfg)
	if err != nil {
		if dialCtx.Err() != nil && ctx.Err() == nil {
			// Stop was called while connecting. Not a connection failure.
			m.setStatus(StatusIdle)
			return fmt.Errorf("tutor: session stopped while connecting: %w", err)
		}
		m.failStart(ctx, "connection", err)
		return fmt.Errorf("tutor: open channel: %w", errors.Join(ErrConnection, err))
	}
	m.metrics.ConnectDuration.Record(ctx, time.Since(dialStart).Seconds())

	caps := m.provider.Capabilities()

	// Playback owns the output device from here on.
	out, err := m.newOutput()
	if err != nil {
		_ = handle.Close()
		m.failStart(ctx, "permission", err)
		return fmt.Errorf("tutor: open speaker: %w", errors.Join(ErrPermission, err))
	}
	sched := playback.New(out, caps.OutputSampleRate,
		playback.WithOnSpeaking(func() { m.setStatusIfActive(StatusSpeaking) }),
		playback.WithOnDrained(func() { m.setStatusIfActive(StatusListening) }),
	)

	idle := newIdleTimer(m.idleTimeout, func() {
		slog.Info("tutor: idle timeout reached, stopping session", "session_id", sessionID)
		_ = m.Stop()
	})

	send := func(pcm []byte) error {
		idle.Reset()
		m.metrics.CaptureFrames.Add(context.Background(), 1)
		return handle.SendAudio(pcm)
	}

	// Capture wiring happens only after the channel is open and the
	// playback device is acquired.
	pipeline, err := capture.Start(ctx, m.newInput(), caps.InputSampleRate, send)
	if err != nil {
		idle.Stop()
		_ = handle.Close()
		_ = sched.Close()
		m.failStart(ctx, "permission", err)
		return fmt.Errorf("tutor: open microphone: %w", errors.Join(ErrPermission, err))
	}

	// Teardown order: capture pipeline, then channel, then scheduler
	// (which stops pending playback and closes the device).
	m.closers = []func() error{sched.Close, handle.Close, pipeline.Close}

	m.wireTranscript(sessionID, studentName)

	m.active = true
	m.sessionID = sessionID
	m.startedAt = now
	m.idle = idle
	m.lastErr = nil
	m.metrics.ActiveSessions.Add(ctx, 1)

	m.setStatus(StatusListening)
	go m.eventLoop(sessionID, handle, sched, idle)

	slog.Info("tutor: session started",
		"session_id", sessionID,
		"voice", m.voice,
		"input_rate", caps.InputSampleRate,
		"output_rate", caps.OutputSampleRate,
	)
	return nil
}

// Stop tears the active session down and returns the state to idle. A
// connect still in progress is aborted rather than waited out. Idempotent:
// stopping an inactive manager is a no-op, not an error.
func (m *Manager) Stop() error {
	m.dialMu.Lock()
	if m.dialCancel != nil {
		m.dialCancel()
	}
	m.dialMu.Unlock()
	return m.teardown(nil)
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

// OnStatus registers a callback invoked on every status change. Only one
// callback can be active; calling OnStatus again replaces it. The callback
// must not call back into the Manager.
func (m *Manager) OnStatus(fn func(Status)) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.onStatus = fn
}

// Transcript returns the session transcript log. The log survives across
// sessions; each Start clears it.
func (m *Manager) Transcript() *transcript.Log {
	return m.log
}

// LastError returns the fatal error that ended the most recent session, or
// nil when it ended cleanly. Cleared on the next successful Start.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// connectWithBackoff dials the live channel with exponential backoff
// between attempts.
func (m *Manager) connectWithBackoff(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	backoff := m.connectBackoff
	var lastErr error

	for attempt := 1; attempt <= m.connectRetries; attempt++ {
		handle, err := m.provider.Connect(ctx, cfg)
		if err == nil {
			return handle, nil
		}
		lastErr = err

		slog.Warn("tutor: connect attempt failed",
			"attempt", attempt,
			"max_retries", m.connectRetries,
			"backoff", backoff,
			"err", err,
		)

		if attempt == m.connectRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > m.maxBackoff {
			backoff = m.maxBackoff
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", m.connectRetries, lastErr)
}

// wireTranscript resets the transcript for a new session, attaches the
// persistence recorder when a store is configured, and seeds the greeting.
func (m *Manager) wireTranscript(sessionID, studentName string) {
	m.log.Clear()

	var rec *sessionlog.Recorder
	if m.store != nil {
		rec = sessionlog.NewRecorder(m.store, sessionID)
	}
	m.recorder = rec

	m.log.OnAppend(func(line transcript.Line) {
		m.metrics.RecordTranscriptLine(context.Background(), string(line.Sender))
		if rec != nil {
			rec.Record(sessionlog.Entry{
				Sender:    string(line.Sender),
				Text:      line.Text,
				Timestamp: line.At,
			})
		}
	})

	m.log.Append(transcript.SenderTutor, Greeting(studentName))
}

// eventLoop consumes the session's inbound events until the channel
// closes. It runs on its own goroutine and never holds the manager mutex
// while processing an event.
func (m *Manager) eventLoop(sessionID string, handle live.SessionHandle, sched *playback.Scheduler, idle *idleTimer) {
	ctx := context.Background()

	for ev := range handle.Events() {
		switch ev := ev.(type) {
		case live.AudioChunk:
			idle.Reset()
			if err := sched.Enqueue(ev.PCM); err != nil {
				slog.Warn("tutor: dropping malformed audio chunk", "session_id", sessionID, "err", err)
				m.metrics.RecordChunkError(ctx, "decode")
				continue
			}
			m.metrics.PlaybackChunks.Add(ctx, 1)

		case live.InputTranscript:
			m.log.Append(transcript.SenderUser, ev.Text)

		case live.OutputTranscript:
			m.log.Append(transcript.SenderTutor, ev.Text)

		case live.Interrupted:
			sched.Interrupt()
			m.metrics.Interruptions.Add(ctx, 1)
			m.setStatusIfActive(StatusListening)

		case live.TurnComplete:
			slog.Debug("tutor: turn complete", "session_id", sessionID)

		case live.Closed:
			if ev.Err != nil {
				slog.Error("tutor: channel dropped", "session_id", sessionID, "err", ev.Err)
				_ = m.teardown(fmt.Errorf("tutor: channel dropped: %w", errors.Join(ErrConnection, ev.Err)))
			} else {
				_ = m.teardown(nil)
			}
			return
		}
	}

	// The event channel ended without a terminal Closed event. Tear down
	// anyway so the session cannot linger half-dead and block future starts.
	slog.Error("tutor: event stream ended without terminal event", "session_id", sessionID)
	_ = m.teardown(fmt.Errorf("tutor: event stream ended unexpectedly: %w", ErrConnection))
}

// failStart records a failed connecting → idle transition.
func (m *Manager) failStart(ctx context.Context, kind string, err error) {
	m.metrics.RecordSessionError(ctx, kind)
	m.lastErr = err
	m.setStatus(StatusIdle)
}

// teardown releases every session resource exactly once and returns the
// state machine to idle. err, when non-nil, is recorded as the session's
// fatal error.
func (m *Manager) teardown(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return nil
	}
	sessionID := m.sessionID
	ctx := context.Background()

	m.idle.Stop()

	// Run closers (pipeline, channel, scheduler) in reverse order.
	for i := len(m.closers) - 1; i >= 0; i-- {
		if cerr := m.closers[i](); cerr != nil {
			slog.Warn("tutor: closer error", "session_id", sessionID, "index", i, "err", cerr)
		}
	}

	m.log.OnAppend(nil)
	if m.recorder != nil {
		if cerr := m.recorder.Close(); cerr != nil {
			slog.Warn("tutor: recorder close error", "session_id", sessionID, "err", cerr)
		}
	}

	m.metrics.ActiveSessions.Add(ctx, -1)
	m.metrics.SessionDuration.Record(ctx, time.Since(m.startedAt).Seconds())
	if err != nil {
		kind := "connection"
		if errors.Is(err, ErrPermission) {
			kind = "permission"
		}
		m.metrics.RecordSessionError(ctx, kind)
	}

	// Clear state.
	m.active = false
	m.sessionID = ""
	m.startedAt = time.Time{}
	m.recorder = nil
	m.idle = nil
	m.closers = nil
	m.lastErr = err

	m.setStatus(StatusIdle)
	slog.Info("tutor: session stopped", "session_id", sessionID, "err", err)
	return nil
}

// setStatus updates the status and notifies the observer.
func (m *Manager) setStatus(s Status) {
	m.statusMu.Lock()
	if m.status == s {
		m.statusMu.Unlock()
		return
	}
	m.status = s
	fn := m.onStatus
	m.statusMu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// setStatusIfActive updates the status only while a session is running, so
// late playback callbacks cannot flip an idle manager.
func (m *Manager) setStatusIfActive(s Status) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active {
		m.setStatus(s)
	}
}

// sanitizeID lowercases a name and replaces spaces with hyphens for use in
// session IDs.
func sanitizeID(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	return name
}
