package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of one conversation history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one ordered entry in a call's conversation history.
type Turn struct {
	Role Role
	Text string
}

// Session is the single per-call record: one per WebSocket connection,
// created on accept and destroyed on WS close or the provider's `stop`
// event. It holds the conversation history, the provider stream SID, the
// call's cancellation handle and the stopped flag; the STT manager, the
// in-flight LLM turn's abort handle and the outbound writer are held by the
// orchestrator for the same call, not by this type. No state is shared
// across sessions. All mutation goes through
// its methods, which serialize access with a single mutex; reads return
// copies so callers never race on the underlying slices.
type Session struct {
	mu sync.Mutex

	id        string
	streamSid string

	history []Turn

	cancel context.CancelFunc
	stopped bool

	startedAt time.Time
}

// New creates a Session with a freshly generated local ID. The provider's
// stream SID is not known until the `start` event arrives and is set via
// SetStreamSid.
func New(cancel context.CancelFunc) *Session {
	return &Session{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now(),
	}
}

// ID returns the session's local identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetStreamSid records the provider's stream SID once the `start` event
// arrives.
func (s *Session) SetStreamSid(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSid = sid
}

// StreamSid returns the provider's stream SID, or "" before `start`.
func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// AppendTurn appends one conversation history entry.
func (s *Session) AppendTurn(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: role, Text: text})
}

// PopLastIf removes the last history entry if it matches role and was
// never followed by an assistant reply — used to pop a partial user turn
// when its LLM generation is aborted, so no dangling user turn survives
// teardown without a matching assistant turn.
func (s *Session) PopLastIf(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return
	}
	last := s.history[len(s.history)-1]
	if last.Role == role {
		s.history = s.history[:len(s.history)-1]
	}
}

// History returns a copy of the conversation history ordered oldest-first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Stop marks the session stopped and invokes its cancellation handle.
// Idempotent: calling it more than once (WS close racing a `stop` event,
// or a teardown racing a flush) has no additional effect.
func (s *Session) Stop() {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if !alreadyStopped && cancel != nil {
		cancel()
	}
}

// Stopped reports whether the session has been torn down.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
