package voice

import (
	"context"
	"log"
	"sync"

	"github.com/agriagents/voicebridge/internal/codec"
	"github.com/gorilla/websocket"
)

// STTManager owns the PCM buffer and the upstream STT session for one
// call: it flushes buffered PCM as WAV once PCMFlushThresholdMs is
// reached, forwards upstream events on a single long-lived channel across
// reconnects, and applies the reconnect policy — reconnect only on a
// close code of exactly websocket.CloseNormalClosure (1000), only if no
// prior error occurred on this call's STT session, and only if the call
// itself is not stopped. Any other close, or a prior error, or a stopped
// call, ends the STT session for good; the call degrades rather than
// spinning on a doomed upstream.
type STTManager struct {
	provider  STTProvider
	sessionID string
	stopped   func() bool

	mu       sync.Mutex
	buf      PCMBuffer
	current  STTSession
	hadError bool

	out chan STTEvent
}

// NewSTTManager constructs an STTManager for one call.
func NewSTTManager(provider STTProvider, sessionID string, stopped func() bool) *STTManager {
	return &STTManager{
		provider:  provider,
		sessionID: sessionID,
		stopped:   stopped,
		out:       make(chan STTEvent, 256),
	}
}

// Start dials the first upstream STT session and begins forwarding its
// events, reconnecting per the policy above as sessions end.
func (m *STTManager) Start(ctx context.Context) (<-chan STTEvent, error) {
	sess, events, err := m.provider.StartSession(ctx, m.sessionID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	go m.pump(ctx, events)
	return m.out, nil
}

func (m *STTManager) pump(ctx context.Context, events <-chan STTEvent) {
	for ev := range events {
		if ev.Type == STTEventError {
			isCloseEvent := ev.Code == "connection_closed"

			m.mu.Lock()
			hadPriorError := m.hadError
			if !isCloseEvent {
				m.hadError = true
			}
			m.mu.Unlock()

			if isCloseEvent && m.shouldReconnect(ev.CloseCode, hadPriorError) {
				m.out <- ev
				sess, nextEvents, err := m.provider.StartSession(ctx, m.sessionID)
				if err != nil {
					log.Printf("voice: stt reconnect failed for %s: %v", m.sessionID, err)
					continue
				}
				m.mu.Lock()
				m.current = sess
				m.mu.Unlock()
				go m.pump(ctx, nextEvents)
				return
			}
		}
		m.out <- ev
	}
}

func (m *STTManager) shouldReconnect(closeCode int, hadPriorError bool) bool {
	if m.stopped() || hadPriorError {
		return false
	}
	return closeCode == websocket.CloseNormalClosure
}

// SendPCM appends pcm to the buffer and flushes it as a WAV-wrapped
// upstream message once PCMFlushThresholdMs has accumulated.
func (m *STTManager) SendPCM(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	m.buf.Append(pcm)
	ready := m.buf.Ready()
	var flushed []byte
	if ready {
		flushed = m.buf.Flush()
	}
	sess := m.current
	m.mu.Unlock()

	if !ready || sess == nil {
		return nil
	}
	return m.sendWAV(ctx, sess, flushed)
}

// FlushAndClose flushes any remaining buffered PCM to the upstream, then
// closes the STT upstream, ignoring close/send errors — teardown must
// never fail on a dying upstream connection.
func (m *STTManager) FlushAndClose(ctx context.Context) {
	m.mu.Lock()
	remaining := m.buf.Flush()
	sess := m.current
	m.mu.Unlock()

	if sess == nil {
		return
	}
	if len(remaining) > 0 {
		_ = m.sendWAV(ctx, sess, remaining)
	}
	_ = sess.Close()
}

func (m *STTManager) sendWAV(ctx context.Context, sess STTSession, pcm []byte) error {
	wav, err := codec.EncodeWAVPCM16LE(pcm)
	if err != nil {
		return err
	}
	return sess.SendWAV(ctx, wav)
}
