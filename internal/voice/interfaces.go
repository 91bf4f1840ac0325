// Package voice implements the call-scoped pipeline: STT session
// management, utterance assembly, the LLM driver, the TTS queue, and the
// session orchestrator that wires them together.
package voice

import (
	"context"

	"github.com/agriagents/voicebridge/internal/session"
)

// STTEventType identifies the kind of event an STT upstream session emits.
type STTEventType string

const (
	STTEventTranscript STTEventType = "transcript"
	STTEventSpeechStart STTEventType = "speech_start"
	STTEventSpeechEnd  STTEventType = "speech_end"
	STTEventError      STTEventType = "error"
)

// STTEvent is one event received from the STT upstream's event stream.
type STTEvent struct {
	Type      STTEventType
	Text      string
	IsFinal   bool
	Code      string
	Detail    string
	Retryable bool
	// CloseCode is populated on connection-closed errors so the reconnect
	// policy can apply the close-code-1000-only discipline.
	CloseCode int
}

// STTSession is a single upstream STT connection for one call.
type STTSession interface {
	// SendWAV sends one WAV-wrapped PCM16LE chunk to the upstream.
	SendWAV(ctx context.Context, wav []byte) error
	Close() error
}

// STTProvider starts new upstream STT sessions. Concrete wire formats are
// an implementation detail behind this contract (spec scopes them out).
type STTProvider interface {
	StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error)
}

// TTSProvider synthesizes speech for one segment of assistant text,
// returning linear16 PCM at 8000Hz, or an error on failure. TTSQueue
// retries errors and turns a permanent failure into a nil slice, which
// callers treat as "skip".
type TTSProvider interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

// LLMRequest is one turn's input to the LLM driver.
type LLMRequest struct {
	History  []session.Turn
	UserText string
}

// LLMAdapter streams one chat-completion turn, invoking onDelta for every
// incremental piece of text as it arrives. It returns the full
// accumulated reply text once the stream ends, or an error if the stream
// was aborted or failed outright.
type LLMAdapter interface {
	StreamResponse(ctx context.Context, req LLMRequest, onDelta func(string) error) (string, error)
}
