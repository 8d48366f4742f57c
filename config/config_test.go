package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Acquisition.Delay != time.Second {
		t.Errorf("expected 1s acquire delay, got %s", cfg.Acquisition.Delay)
	}
	if cfg.Generation.MaxOutputTokens != 2000 || cfg.Generation.Temperature != 0.7 {
		t.Errorf("expected 2000 tokens at 0.7, got %d at %g", cfg.Generation.MaxOutputTokens, cfg.Generation.Temperature)
	}
	if cfg.Archive.Enabled() {
		t.Error("expected archive to be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TRANSCRIBE_TIMEOUT", "90s")
	t.Setenv("GENERATE_BACKEND", "OpenAI")
	t.Setenv("GENERATE_PARALLEL", "true")
	t.Setenv("GENERATE_TEMPERATURE", "0.2")
	t.Setenv("RATE_LIMIT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Transcription.Timeout != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.Transcription.Timeout)
	}
	if cfg.Generation.Backend != BackendOpenAI {
		t.Errorf("expected openai backend, got %s", cfg.Generation.Backend)
	}
	if !cfg.Generation.Parallel {
		t.Error("expected parallel generation")
	}
	if cfg.Generation.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %g", cfg.Generation.Temperature)
	}
	if cfg.Server.RateLimit != 5 {
		t.Errorf("expected invalid rate limit to keep default 5, got %d", cfg.Server.RateLimit)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipzaar.toml")
	content := `
[server]
port = "7070"
request_timeout = "5m"

[acquisition]
delay = "500ms"
temp_dir = "/var/tmp/clipzaar"

[generation]
backend = "openai"
temperature = 0.9
parallel = true

[archive]
bucket = "results"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "6060")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected environment to win, got port %s", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Minute {
		t.Errorf("expected 5m, got %s", cfg.Server.RequestTimeout)
	}
	if cfg.Acquisition.Delay != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.Acquisition.Delay)
	}
	if cfg.Acquisition.TempDir != "/var/tmp/clipzaar" {
		t.Errorf("expected temp dir from file, got %s", cfg.Acquisition.TempDir)
	}
	if cfg.Generation.Backend != BackendOpenAI || cfg.Generation.Temperature != 0.9 || !cfg.Generation.Parallel {
		t.Errorf("expected generation settings from file, got %+v", cfg.Generation)
	}
	if !cfg.Archive.Enabled() {
		t.Error("expected archive to be enabled")
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", "[server]\nread_timeout = \"soon\"\n"},
		{"unknown key", "[server]\nportt = \"1\"\n"},
		{"bad toml", "[server\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"delay above cap", func(c *Config) { c.Acquisition.Delay = 3 * time.Second }},
		{"negative delay", func(c *Config) { c.Acquisition.Delay = -time.Second }},
		{"unknown backend", func(c *Config) { c.Transcription.Backend = "whisper.cpp" }},
		{"temperature", func(c *Config) { c.Generation.Temperature = 3 }},
		{"zero tokens", func(c *Config) { c.Generation.MaxOutputTokens = 0 }},
	}

	if err := ValidateConfig(Default()); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.OpenAI.APIKey = "sk-openai"
	cfg.Gemini.APIKey = "gm-key"

	if got := cfg.APIKey(BackendOpenAI); got != "sk-openai" {
		t.Errorf("expected openai key, got %q", got)
	}
	if got := cfg.APIKey(BackendGemini); got != "gm-key" {
		t.Errorf("expected gemini key, got %q", got)
	}
}
