package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bridge service.
type Config struct {
	BindAddr        string
	BaseURL         string
	ShutdownTimeout time.Duration

	AWSRegion      string
	BedrockModelID string

	SarvamAPIKey string

	TwilioAccountSID string
	TwilioAuthToken  string

	DebugLLMPrompt bool

	RecordingDir string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	port := envOrDefault("PORT", "3000")
	cfg := Config{
		BindAddr:         ":" + port,
		BaseURL:          stringsTrimSpace("BASE_URL"),
		ShutdownTimeout:  15 * time.Second,
		AWSRegion:        envOrDefault("AWS_REGION", "us-east-1"),
		BedrockModelID:   envOrDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		SarvamAPIKey:     stringsTrimSpace("SARVAM_API_KEY"),
		TwilioAccountSID: stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		RecordingDir:     envOrDefault("RECORDING_DIR", "recordings"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DebugLLMPrompt, err = boolFromEnv("DEBUG_LLM_PROMPT", false)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(port) == "" {
		return Config{}, fmt.Errorf("PORT must not be empty")
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Config{}, fmt.Errorf("PORT parse error: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
