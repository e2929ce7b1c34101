// Package mock provides scripted implementations of the live provider
// interfaces for tests. The mock session records sent audio and lets the
// test inject server events.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/studyloop/voxtutor/pkg/provider/live"
)

// Compile-time assertions that the mocks satisfy the live interfaces.
var _ live.Provider = (*Provider)(nil)
var _ live.SessionHandle = (*Session)(nil)

// Provider is a scripted [live.Provider].
type Provider struct {
	// ConnectErr, when non-nil, is returned by Connect. Use it to simulate
	// a failed dial.
	ConnectErr error

	// ConnectHold, when non-nil, blocks Connect until the channel is closed
	// or the dial context is cancelled (Connect then returns ctx.Err()).
	// Use it to simulate a slow dial.
	ConnectHold chan struct{}

	// Caps is returned by Capabilities. Defaults to 16 kHz in / 24 kHz out
	// when left zero.
	Caps live.Capabilities

	mu           sync.Mutex
	sessions     []*Session
	connectCalls int
	lastConfig   live.SessionConfig
}

// NewProvider creates a mock provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Connect implements [live.Provider]. Each call creates a fresh [Session],
// retrievable via [Provider.Sessions].
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	p.connectCalls++
	p.lastConfig = cfg
	hold := p.ConnectHold
	connectErr := p.ConnectErr
	p.mu.Unlock()

	if hold != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-hold:
		}
	}
	if connectErr != nil {
		return nil, connectErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s := NewSession()
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Capabilities implements [live.Provider].
func (p *Provider) Capabilities() live.Capabilities {
	if p.Caps.InputSampleRate == 0 {
		return live.Capabilities{InputSampleRate: 16000, OutputSampleRate: 24000}
	}
	return p.Caps
}

// ConnectCalls returns how many times Connect has been invoked.
func (p *Provider) ConnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCalls
}

// LastConfig returns the SessionConfig of the most recent Connect call.
func (p *Provider) LastConfig() live.SessionConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastConfig
}

// Sessions returns every session created so far, oldest first.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a scripted [live.SessionHandle].
type Session struct {
	// SendErr, when non-nil, is returned by SendAudio.
	SendErr error

	mu         sync.Mutex
	sent       [][]byte
	events     chan live.Event
	closed     bool
	closeCalls int
}

// NewSession creates a standalone mock session.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// SendAudio implements [live.SessionHandle], recording the chunk.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock session: closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.sent = append(s.sent, buf)
	return nil
}

// Events implements [live.SessionHandle].
func (s *Session) Events() <-chan live.Event { return s.events }

// Close implements [live.SessionHandle]. The first call emits a clean
// Closed event and closes the event channel.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closed {
		return nil
	}
	s.closed = true
	select {
	case s.events <- live.Closed{}:
	default:
	}
	close(s.events)
	return nil
}

// Emit injects a server event into the stream. Panics if called after the
// session is closed, mirroring a test bug rather than hiding it.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// Fail emits a Closed event carrying err and closes the event channel,
// simulating a dropped connection.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.events <- live.Closed{Err: err}
	close(s.events)
}

// Drop closes the event channel without a terminal Closed event, simulating
// a transport that loses the final message.
func (s *Session) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// Sent returns a copy of every chunk passed to SendAudio, in order.
func (s *Session) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// CloseCalls returns how many times Close has been invoked.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Closed reports whether the session has been closed (locally or via Fail).
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
