package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/agriagents/voicebridge/internal/reliability"
	"github.com/gorilla/websocket"
)

// SarvamSTTConfig configures the Sarvam streaming speech-to-text provider.
type SarvamSTTConfig struct {
	APIKey        string
	WSBaseURL     string
	LanguageCode  string
	Model         string
}

// SarvamSTTProvider dials Sarvam's streaming STT websocket per call. The
// concrete wire format here is an implementation detail behind the
// STTProvider contract; spec §1 scopes it out as an abstract collaborator.
type SarvamSTTProvider struct {
	cfg SarvamSTTConfig
}

// NewSarvamSTTProvider constructs a SarvamSTTProvider with sane defaults.
func NewSarvamSTTProvider(cfg SarvamSTTConfig) *SarvamSTTProvider {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.sarvam.ai"
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "unknown"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "saarika:v2"
	}
	return &SarvamSTTProvider{cfg: cfg}
}

func (p *SarvamSTTProvider) StartSession(ctx context.Context, sessionID string) (STTSession, <-chan STTEvent, error) {
	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + "/speech-to-text/ws")
	if err != nil {
		return nil, nil, err
	}
	q := u.Query()
	q.Set("language-code", p.cfg.LanguageCode)
	q.Set("model", p.cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("api-subscription-key", p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, nil, fmt.Errorf("dial sarvam stt websocket: %w", err)
	}

	events := make(chan STTEvent, 256)
	s := &sarvamSTTSession{conn: conn, events: events}
	go s.readLoop()
	return s, events, nil
}

type sarvamSTTSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan STTEvent
}

func (s *sarvamSTTSession) SendWAV(_ context.Context, wav []byte) error {
	payload := map[string]any{
		"audio": map[string]any{
			"data":       base64.StdEncoding.EncodeToString(wav),
			"encoding":   "audio/wav",
			"sample_rate": 8000,
		},
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *sarvamSTTSession) readLoop() {
	defer s.safeClose()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			code := 0
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
			}
			s.events <- STTEvent{Type: STTEventError, Code: "connection_closed", Detail: err.Error(), CloseCode: code}
			return
		}

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		messageType := asString(raw["type"])
		switch messageType {
		case "data":
			transcript := ""
			if d, ok := raw["data"].(map[string]any); ok {
				transcript = asString(d["transcript"])
			}
			s.events <- STTEvent{Type: STTEventTranscript, Text: transcript}
		case "speech_start", "speech-start":
			s.events <- STTEvent{Type: STTEventSpeechStart}
		case "speech_end", "speech-end":
			s.events <- STTEvent{Type: STTEventSpeechEnd}
		case "events":
			// control/keepalive frame, not surfaced.
		default:
			if errMsg := asString(raw["error"]); errMsg != "" || messageType == "error" {
				s.events <- STTEvent{
					Type:      STTEventError,
					Code:      messageType,
					Detail:    errMsg,
					Retryable: reliability.IsRetryableRealtimeMessageType(messageType),
				}
			}
		}
	}
}

func (s *sarvamSTTSession) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		retErr = s.conn.Close()
		close(s.events)
	})
	return retErr
}

func (s *sarvamSTTSession) safeClose() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		close(s.events)
	})
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
