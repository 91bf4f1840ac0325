package voice

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type countingSTTSession struct {
	wavs [][]byte
}

func (s *countingSTTSession) SendWAV(ctx context.Context, wav []byte) error {
	s.wavs = append(s.wavs, wav)
	return nil
}

func (s *countingSTTSession) Close() error { return nil }

type scriptedSTTProvider struct {
	channels []chan STTEvent
	starts   int
}

func newScriptedSTTProvider(n int) *scriptedSTTProvider {
	p := &scriptedSTTProvider{}
	for i := 0; i < n; i++ {
		p.channels = append(p.channels, make(chan STTEvent, 4))
	}
	return p
}

func (p *scriptedSTTProvider) StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error) {
	ch := p.channels[p.starts]
	p.starts++
	return &countingSTTSession{}, ch, nil
}

func drainOne(t *testing.T, out <-chan STTEvent, timeout time.Duration) STTEvent {
	select {
	case ev := <-out:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for an event")
		return STTEvent{}
	}
}

func TestSTTManagerReconnectsOnCleanClose1000(t *testing.T) {
	p := newScriptedSTTProvider(2)
	stopped := func() bool { return false }
	m := NewSTTManager(p, "call-1", stopped)

	out, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p.channels[0] <- STTEvent{Type: STTEventError, Code: "connection_closed", CloseCode: websocket.CloseNormalClosure}
	drainOne(t, out, time.Second) // the forwarded close event itself

	time.Sleep(20 * time.Millisecond)
	if p.starts != 2 {
		t.Fatalf("starts = %d, want 2 (reconnected on clean close)", p.starts)
	}

	p.channels[1] <- STTEvent{Type: STTEventTranscript, Text: "hello from the reconnected session"}
	ev := drainOne(t, out, time.Second)
	if ev.Type != STTEventTranscript {
		t.Fatalf("expected transcript forwarded across reconnect, got %+v", ev)
	}
}

func TestSTTManagerDoesNotReconnectOnNonCleanClose(t *testing.T) {
	p := newScriptedSTTProvider(1)
	stopped := func() bool { return false }
	m := NewSTTManager(p, "call-2", stopped)

	out, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p.channels[0] <- STTEvent{Type: STTEventError, Code: "connection_closed", CloseCode: websocket.CloseAbnormalClosure}
	drainOne(t, out, time.Second)

	time.Sleep(20 * time.Millisecond)
	if p.starts != 1 {
		t.Fatalf("starts = %d, want 1 (no reconnect on a non-1000 close)", p.starts)
	}
}

func TestSTTManagerDoesNotReconnectAfterPriorError(t *testing.T) {
	p := newScriptedSTTProvider(1)
	stopped := func() bool { return false }
	m := NewSTTManager(p, "call-3", stopped)

	out, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p.channels[0] <- STTEvent{Type: STTEventError, Code: "rate_limited", Detail: "too many requests"}
	drainOne(t, out, time.Second)

	p.channels[0] <- STTEvent{Type: STTEventError, Code: "connection_closed", CloseCode: websocket.CloseNormalClosure}
	drainOne(t, out, time.Second)

	time.Sleep(20 * time.Millisecond)
	if p.starts != 1 {
		t.Fatalf("starts = %d, want 1 (no reconnect once a prior non-close error occurred)", p.starts)
	}
}

func TestSTTManagerDoesNotReconnectWhenStopped(t *testing.T) {
	p := newScriptedSTTProvider(1)
	stopped := func() bool { return true }
	m := NewSTTManager(p, "call-4", stopped)

	out, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p.channels[0] <- STTEvent{Type: STTEventError, Code: "connection_closed", CloseCode: websocket.CloseNormalClosure}
	drainOne(t, out, time.Second)

	time.Sleep(20 * time.Millisecond)
	if p.starts != 1 {
		t.Fatalf("starts = %d, want 1 (no reconnect once the call is stopped)", p.starts)
	}
}
