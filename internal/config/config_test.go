package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":3000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":3000")
	}
	if cfg.AWSRegion != "us-east-1" {
		t.Fatalf("AWSRegion = %q, want us-east-1", cfg.AWSRegion)
	}
	if cfg.BedrockModelID != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Fatalf("BedrockModelID = %q, want default haiku model", cfg.BedrockModelID)
	}
	if cfg.DebugLLMPrompt {
		t.Fatalf("DebugLLMPrompt default = true, want false")
	}
}

func TestLoadUsesExplicitPort(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want :9191", cfg.BindAddr)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want error for invalid PORT")
	}
}

func TestLoadParsesDebugFlag(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DEBUG_LLM_PROMPT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.DebugLLMPrompt {
		t.Fatalf("DebugLLMPrompt = false, want true")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"BASE_URL",
		"APP_SHUTDOWN_TIMEOUT",
		"AWS_REGION",
		"BEDROCK_MODEL_ID",
		"SARVAM_API_KEY",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"DEBUG_LLM_PROMPT",
		"RECORDING_DIR",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
