package voice

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/agriagents/voicebridge/internal/codec"
	"github.com/agriagents/voicebridge/internal/protocol"
)

type fakeSTTSession struct {
	sent [][]byte
}

func (s *fakeSTTSession) SendWAV(ctx context.Context, wav []byte) error {
	s.sent = append(s.sent, wav)
	return nil
}

func (s *fakeSTTSession) Close() error { return nil }

type fakeSTTProvider struct {
	events chan STTEvent
	starts int
}

func (p *fakeSTTProvider) StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error) {
	p.starts++
	if p.events == nil {
		p.events = make(chan STTEvent, 16)
	}
	return &fakeSTTSession{}, p.events, nil
}

type fakeLLMAdapter struct {
	reply string
	block chan struct{}
}

func (f *fakeLLMAdapter) StreamResponse(ctx context.Context, req LLMRequest, onDelta func(string) error) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := onDelta(f.reply); err != nil {
		return "", err
	}
	return f.reply, nil
}

func collectOutbound(t *testing.T, outbound <-chan protocol.OutboundMedia, timeout time.Duration) []protocol.OutboundMedia {
	var got []protocol.OutboundMedia
	deadline := time.After(timeout)
	for {
		select {
		case m := <-outbound:
			got = append(got, m)
		case <-deadline:
			return got
		}
	}
}

func mediaMessage(pcmSamples []int16) protocol.Media {
	mulaw := codec.EncodeMuLaw(pcmSamples)
	return protocol.Media{
		Event:     protocol.EventMedia,
		StreamSid: "SID1",
		Media:     protocol.MediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
}

func TestOrchestratorSendsWelcomeMessageAfterStart(t *testing.T) {
	sttp := &fakeSTTProvider{}
	llm := &fakeLLMAdapter{reply: "this reply is never used here"}
	tts := NewTTSQueue(&fakeTTSProvider{})
	o := NewOrchestrator(sttp, llm, tts, "", nil)

	inbound := make(chan any, 4)
	outbound := make(chan protocol.OutboundMedia, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.RunConnection(ctx, inbound, outbound)
		close(done)
	}()

	inbound <- protocol.Start{Event: protocol.EventStart, StreamSid: "SID1"}

	frames := collectOutbound(t, outbound, 200*time.Millisecond)
	if len(frames) == 0 {
		t.Fatalf("expected at least one outbound frame for the welcome message")
	}
	for _, f := range frames {
		if f.StreamSid != "SID1" {
			t.Fatalf("frame streamSid = %q, want SID1", f.StreamSid)
		}
	}

	close(inbound)
	<-done
}

func TestOrchestratorHappyPathTranscriptTriggersLLMAndTTS(t *testing.T) {
	sttp := &fakeSTTProvider{}
	llm := &fakeLLMAdapter{reply: "the weather looks good for sowing this week"}
	tts := NewTTSQueue(&fakeTTSProvider{})
	o := NewOrchestrator(sttp, llm, tts, "", nil)

	inbound := make(chan any, 8)
	outbound := make(chan protocol.OutboundMedia, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.RunConnection(ctx, inbound, outbound)
		close(done)
	}()

	inbound <- protocol.Start{Event: protocol.EventStart, StreamSid: "SID1"}
	time.Sleep(20 * time.Millisecond)

	sttp.events <- STTEvent{Type: STTEventTranscript, Text: "when should I sow my wheat crop"}
	sttp.events <- STTEvent{Type: STTEventSpeechEnd}

	frames := collectOutbound(t, outbound, 400*time.Millisecond)
	if len(frames) == 0 {
		t.Fatalf("expected outbound audio frames for the LLM reply")
	}

	close(inbound)
	<-done
}

func TestOrchestratorIgnoresFillerTranscript(t *testing.T) {
	sttp := &fakeSTTProvider{}
	llm := &fakeLLMAdapter{reply: "should never be produced"}
	tts := NewTTSQueue(&fakeTTSProvider{})
	o := NewOrchestrator(sttp, llm, tts, "", nil)

	inbound := make(chan any, 8)
	outbound := make(chan protocol.OutboundMedia, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.RunConnection(ctx, inbound, outbound)
		close(done)
	}()

	inbound <- protocol.Start{Event: protocol.EventStart, StreamSid: "SID1"}
	// Drain the welcome-message frames before asserting on the filler case.
	collectOutbound(t, outbound, 150*time.Millisecond)

	sttp.events <- STTEvent{Type: STTEventTranscript, Text: "okay"}
	sttp.events <- STTEvent{Type: STTEventSpeechEnd}

	frames := collectOutbound(t, outbound, 150*time.Millisecond)
	if len(frames) != 0 {
		t.Fatalf("expected no frames for a bare filler utterance, got %d", len(frames))
	}

	close(inbound)
	<-done
}

func TestOrchestratorStopMidGenerationReturnsPromptly(t *testing.T) {
	sttp := &fakeSTTProvider{}
	block := make(chan struct{}) // never closed: StreamResponse blocks until ctx cancellation
	llm := &fakeLLMAdapter{reply: "unused", block: block}
	tts := NewTTSQueue(&fakeTTSProvider{})
	o := NewOrchestrator(sttp, llm, tts, "", nil)

	inbound := make(chan any, 8)
	outbound := make(chan protocol.OutboundMedia, 64)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		o.RunConnection(ctx, inbound, outbound)
		close(done)
	}()

	inbound <- protocol.Start{Event: protocol.EventStart, StreamSid: "SID1"}
	collectOutbound(t, outbound, 150*time.Millisecond)

	sttp.events <- STTEvent{Type: STTEventTranscript, Text: "please tell me about fertilizer timing"}
	sttp.events <- STTEvent{Type: STTEventSpeechEnd}
	time.Sleep(20 * time.Millisecond)

	inbound <- protocol.Stop{Event: protocol.EventStop, StreamSid: "SID1"}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("RunConnection did not return after stop")
	}
}

func TestOrchestratorSTTStickyErrorDegradesWithoutReconnect(t *testing.T) {
	sttp := &fakeSTTProvider{}
	llm := &fakeLLMAdapter{reply: "unused"}
	tts := NewTTSQueue(&fakeTTSProvider{})
	o := NewOrchestrator(sttp, llm, tts, "", nil)

	inbound := make(chan any, 8)
	outbound := make(chan protocol.OutboundMedia, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.RunConnection(ctx, inbound, outbound)
		close(done)
	}()

	inbound <- protocol.Start{Event: protocol.EventStart, StreamSid: "SID1"}
	collectOutbound(t, outbound, 150*time.Millisecond)

	sttp.events <- STTEvent{Type: STTEventError, Code: "rate_limited", Detail: "too many requests", Retryable: false}
	time.Sleep(20 * time.Millisecond)

	if sttp.starts != 1 {
		t.Fatalf("stt provider starts = %d, want 1 (no reconnect on a sticky non-close error)", sttp.starts)
	}

	close(inbound)
	<-done
}
