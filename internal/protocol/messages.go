// Package protocol defines the inbound and outbound WebSocket message
// schema for the telephony provider's media-stream protocol, plus the
// TwiML-style control document returned from the call-setup webhook.
package protocol

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
)

// EventType is the inbound event discriminator sent by the telephony
// provider over the media-stream WebSocket.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
)

// ErrUnsupportedEvent is returned by ParseInboundMessage for any event
// type the bridge does not recognize. Callers log and drop the message.
var ErrUnsupportedEvent = errors.New("protocol: unsupported event")

// envelope is used only to sniff the event discriminator before decoding
// into the fully-typed message.
type envelope struct {
	Event EventType `json:"event"`
}

// Connected is the first message on a new media-stream connection.
type Connected struct {
	Event    EventType `json:"event"`
	Protocol string    `json:"protocol,omitempty"`
	Version  string    `json:"version,omitempty"`
}

// Start carries the provider's stream SID and call metadata. The stream
// SID is the only caller-identifying information known until this point.
type Start struct {
	Event     EventType    `json:"event"`
	StreamSid string       `json:"streamSid"`
	Start     StartPayload `json:"start"`
}

// StartPayload holds the nested `start` object of a Start message.
type StartPayload struct {
	StreamSid   string            `json:"streamSid"`
	CallSid     string            `json:"callSid,omitempty"`
	Tracks      []string          `json:"tracks,omitempty"`
	CustomParam map[string]string `json:"customParameters,omitempty"`
}

// Media carries one base64-encoded inbound mu-law/8kHz/mono audio chunk.
type Media struct {
	Event     EventType    `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

// MediaPayload holds the nested `media` object of a Media message.
type MediaPayload struct {
	Payload string `json:"payload"`
	Track   string `json:"track,omitempty"`
}

// Stop signals the caller hung up or the provider otherwise ended the
// stream; the bridge tears the session down on receipt.
type Stop struct {
	Event     EventType `json:"event"`
	StreamSid string    `json:"streamSid"`
}

// ParseInboundMessage decodes one inbound WebSocket text frame into its
// concrete typed message. Unknown events return ErrUnsupportedEvent so
// the caller can log-and-drop per the malformed/unknown message policy.
func ParseInboundMessage(raw []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	switch env.Event {
	case EventConnected:
		var m Connected
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode connected: %w", err)
		}
		return m, nil
	case EventStart:
		var m Start
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode start: %w", err)
		}
		if m.StreamSid == "" {
			m.StreamSid = m.Start.StreamSid
		}
		return m, nil
	case EventMedia:
		var m Media
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode media: %w", err)
		}
		return m, nil
	case EventStop:
		var m Stop
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode stop: %w", err)
		}
		return m, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}

// OutboundMedia is the outbound frame the bridge writes back to the
// caller's media-stream WebSocket: one base64-encoded 20ms mu-law chunk.
type OutboundMedia struct {
	Event     string               `json:"event"`
	StreamSid string               `json:"streamSid"`
	Media     OutboundMediaPayload `json:"media"`
}

// OutboundMediaPayload holds the nested `media` object of OutboundMedia.
type OutboundMediaPayload struct {
	Payload string `json:"payload"`
}

// NewOutboundMedia builds an outbound media frame for streamSid carrying
// the base64-encoded mu-law payload.
func NewOutboundMedia(streamSid, base64Payload string) OutboundMedia {
	return OutboundMedia{
		Event:     "media",
		StreamSid: streamSid,
		Media:     OutboundMediaPayload{Payload: base64Payload},
	}
}

// connectXML is the TwiML-style XML document returned from the telephony
// provider's call-setup webhook, instructing it to open a media stream
// back to the bridge's WebSocket endpoint.
type connectXML struct {
	XMLName xml.Name  `xml:"Response"`
	Connect streamXML `xml:"Connect"`
}

type streamXML struct {
	Stream streamURLXML `xml:"Stream"`
}

type streamURLXML struct {
	URL string `xml:"url,attr"`
}

// BuildConnectDocument renders the XML control document the provider
// expects in response to the inbound-call webhook, pointing it at the
// given media-stream WebSocket URL.
func BuildConnectDocument(streamURL string) ([]byte, error) {
	doc := connectXML{Connect: streamXML{Stream: streamURLXML{URL: streamURL}}}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal connect document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
