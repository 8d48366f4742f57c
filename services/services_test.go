package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nijaru/clipzaar/config"
	"github.com/sirupsen/logrus"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Gemini.APIKey = "test-key"
	cfg.OpenAI.APIKey = "test-key"
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Backend = config.BackendOpenAI

	s, err := Build(context.Background(), cfg, logrus.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer s.Close()

	if s.Pipeline == nil || s.Chain == nil || s.Store == nil {
		t.Fatal("expected pipeline, chain and store to be set")
	}
	if s.Archive != nil {
		t.Error("expected archive to be disabled without a bucket")
	}
	if len(s.Chain.Names()) != 3 {
		t.Errorf("expected 3 strategies, got %v", s.Chain.Names())
	}
}

func TestBuildMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gemini.APIKey = ""

	if _, err := Build(context.Background(), cfg, logrus.New()); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestNewBackendUnknown(t *testing.T) {
	if _, err := newBackend(testConfig(t), "whisper-local", "", logrus.New()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewBackendUsesKeyForNamedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gemini.APIKey = ""

	if _, err := newBackend(cfg, config.BackendOpenAI, "", logrus.New()); err != nil {
		t.Errorf("expected openai backend to use its own key, got %v", err)
	}
	if _, err := newBackend(cfg, config.BackendGemini, "", logrus.New()); err == nil {
		t.Error("expected gemini backend to fail without its key")
	}
}
