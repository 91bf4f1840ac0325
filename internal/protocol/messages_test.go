package protocol

import (
	"errors"
	"testing"
)

func TestParseInboundMessageStart(t *testing.T) {
	raw := []byte(`{"event":"start","streamSid":"MZ123","start":{"streamSid":"MZ123","callSid":"CA456"}}`)
	msg, err := ParseInboundMessage(raw)
	if err != nil {
		t.Fatalf("ParseInboundMessage() error = %v", err)
	}
	start, ok := msg.(Start)
	if !ok {
		t.Fatalf("message type = %T, want Start", msg)
	}
	if start.StreamSid != "MZ123" {
		t.Fatalf("StreamSid = %q, want MZ123", start.StreamSid)
	}
	if start.Start.CallSid != "CA456" {
		t.Fatalf("CallSid = %q, want CA456", start.Start.CallSid)
	}
}

func TestParseInboundMessageMedia(t *testing.T) {
	raw := []byte(`{"event":"media","streamSid":"MZ123","media":{"payload":"AQID"}}`)
	msg, err := ParseInboundMessage(raw)
	if err != nil {
		t.Fatalf("ParseInboundMessage() error = %v", err)
	}
	media, ok := msg.(Media)
	if !ok {
		t.Fatalf("message type = %T, want Media", msg)
	}
	if media.Media.Payload != "AQID" {
		t.Fatalf("Payload = %q, want AQID", media.Media.Payload)
	}
}

func TestParseInboundMessageStop(t *testing.T) {
	raw := []byte(`{"event":"stop","streamSid":"MZ123"}`)
	msg, err := ParseInboundMessage(raw)
	if err != nil {
		t.Fatalf("ParseInboundMessage() error = %v", err)
	}
	if _, ok := msg.(Stop); !ok {
		t.Fatalf("message type = %T, want Stop", msg)
	}
}

func TestParseInboundMessageRejectsUnknownEvent(t *testing.T) {
	_, err := ParseInboundMessage([]byte(`{"event":"wat"}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestNewOutboundMediaShape(t *testing.T) {
	m := NewOutboundMedia("MZ123", "AQID")
	if m.Event != "media" {
		t.Fatalf("Event = %q, want media", m.Event)
	}
	if m.StreamSid != "MZ123" || m.Media.Payload != "AQID" {
		t.Fatalf("unexpected outbound media: %+v", m)
	}
}

func TestBuildConnectDocumentContainsStreamURL(t *testing.T) {
	doc, err := BuildConnectDocument("wss://bridge.example.com/voice/stream")
	if err != nil {
		t.Fatalf("BuildConnectDocument() error = %v", err)
	}
	got := string(doc)
	if !contains(got, `<Connect>`) || !contains(got, `<Stream url="wss://bridge.example.com/voice/stream"`) {
		t.Fatalf("unexpected connect document: %s", got)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
