package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agriagents/voicebridge/internal/reliability"
)

// DefaultTTSLanguageCode is used when the caller does not specify one.
const DefaultTTSLanguageCode = "en-IN"

// SarvamTTSConfig configures the Sarvam text-to-speech REST provider.
type SarvamTTSConfig struct {
	APIKey  string
	BaseURL string
	Speaker string
}

// SarvamTTSProvider calls Sarvam's text-to-speech REST endpoint. Its
// concrete wire format is an implementation detail behind TTSProvider
// (spec scopes TTS wire formats out as an abstract collaborator).
type SarvamTTSProvider struct {
	cfg    SarvamTTSConfig
	client *http.Client
}

// NewSarvamTTSProvider constructs a SarvamTTSProvider with sane defaults.
func NewSarvamTTSProvider(cfg SarvamTTSConfig) *SarvamTTSProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sarvam.ai"
	}
	if strings.TrimSpace(cfg.Speaker) == "" {
		cfg.Speaker = "meera"
	}
	return &SarvamTTSProvider{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

type sarvamTTSRequest struct {
	Text         string `json:"text"`
	TargetLangCode string `json:"target_language_code"`
	Speaker      string `json:"speaker"`
	SpeechSampleRate int `json:"speech_sample_rate"`
	EncodingFormat string `json:"enc"`
}

type sarvamTTSResponse struct {
	Audios []string `json:"audios"`
}

// Synthesize calls Sarvam's TTS endpoint and returns linear16 PCM at
// 8000Hz, or an error on any transport/provider failure — retry and the
// permanent-failure-is-silent contract live one layer up in TTSQueue.
func (p *SarvamTTSProvider) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	if strings.TrimSpace(languageCode) == "" {
		languageCode = DefaultTTSLanguageCode
	}

	body, err := json.Marshal(sarvamTTSRequest{
		Text:             text,
		TargetLangCode:   languageCode,
		Speaker:          p.cfg.Speaker,
		SpeechSampleRate: 8000,
		EncodingFormat:   "linear16",
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, fmt.Errorf("tts: retryable status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("tts: sticky status %d", resp.StatusCode)
	}

	var out sarvamTTSResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tts: decode response: %w", err)
	}
	if len(out.Audios) == 0 {
		return nil, fmt.Errorf("tts: empty audio response")
	}
	audio, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("tts: decode audio base64: %w", err)
	}
	return audio, nil
}
