// Package services assembles the processing pipeline from configuration.
// The HTTP server and the command line tool share it.
package services

import (
	"context"

	"github.com/nijaru/clipzaar/acquisition"
	"github.com/nijaru/clipzaar/backends"
	"github.com/nijaru/clipzaar/config"
	"github.com/nijaru/clipzaar/db"
	"github.com/nijaru/clipzaar/generator"
	"github.com/nijaru/clipzaar/pipeline"
	"github.com/nijaru/clipzaar/storage"
	"github.com/nijaru/clipzaar/transcription"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Pipeline *pipeline.Pipeline
	Chain    *acquisition.Chain
	Store    *db.Store
	Archive  *storage.Archive
}

type backend interface {
	transcription.Backend
	generator.TextGenerator
}

// Build wires every component. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Services, error) {
	transcriber, err := newBackend(cfg, cfg.Transcription.Backend, cfg.Transcription.Model, logger)
	if err != nil {
		return nil, errors.Wrap(err, "transcription backend")
	}
	writer, err := newBackend(cfg, cfg.Generation.Backend, cfg.Generation.Model, logger)
	if err != nil {
		return nil, errors.Wrap(err, "generation backend")
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open transcript cache")
	}

	s := &Services{Store: store}

	if cfg.Archive.Enabled() {
		archive, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			store.Close()
			return nil, errors.Wrap(err, "failed to initialize archive")
		}
		s.Archive = archive
	}

	chain, err := acquisition.NewChain(
		acquisition.DefaultStrategies(cfg.Acquisition.YtDlpPath, cfg.Acquisition.TempDir, logger),
		acquisition.WithDelay(acquisition.FixedDelay(cfg.Acquisition.Delay)),
		acquisition.WithAttemptTimeout(cfg.Acquisition.AttemptTimeout),
		acquisition.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "acquisition chain")
	}
	s.Chain = chain

	transcriptionService := transcription.NewTranscriptionService(transcriber,
		transcription.WithTimeout(cfg.Transcription.Timeout),
		transcription.WithLogger(logger),
	)

	genCfg := generator.DefaultConfig()
	genCfg.MaxOutputTokens = cfg.Generation.MaxOutputTokens
	genCfg.Temperature = cfg.Generation.Temperature
	genCfg.Timeout = cfg.Generation.Timeout
	gen := generator.New(writer, genCfg, logger)

	s.Pipeline = pipeline.New(s.Chain, transcriptionService, gen,
		pipeline.WithLogger(logger),
		pipeline.WithCache(store),
		pipeline.WithParallelGeneration(cfg.Generation.Parallel),
	)

	logger.WithFields(logrus.Fields{
		"strategies":           s.Chain.Names(),
		"transcriptionBackend": cfg.Transcription.Backend,
		"generationBackend":    cfg.Generation.Backend,
		"parallelGeneration":   cfg.Generation.Parallel,
		"archiveEnabled":       s.Archive != nil,
	}).Info("Services initialized")

	return s, nil
}

func (s *Services) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

func newBackend(cfg *config.Config, name, model string, logger *logrus.Logger) (backend, error) {
	opts := []backends.Option{backends.WithLogger(logger)}

	switch name {
	case config.BackendOpenAI:
		return backends.NewOpenAI(backends.OpenAIConfig{
			APIKey:          cfg.APIKey(name),
			BaseURL:         cfg.OpenAI.BaseURL,
			TranscribeModel: model,
			ChatModel:       model,
		}, opts...)
	case config.BackendGemini:
		return backends.NewGemini(backends.GeminiConfig{
			APIKey:  cfg.APIKey(name),
			BaseURL: cfg.Gemini.BaseURL,
			Model:   model,
		}, opts...)
	default:
		return nil, errors.Errorf("unknown backend %q", name)
	}
}
