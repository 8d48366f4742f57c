// Package pipeline runs one video through validation, audio acquisition,
// transcription and content generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nijaru/clipzaar/acquisition"
	"github.com/nijaru/clipzaar/generator"
	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/validation"
	"github.com/sirupsen/logrus"
)

const (
	ReasonAcquisition   = "Failed to download audio from video. Please try a different video or check if YouTube is accessible from your network."
	ReasonTranscription = "Failed to transcribe audio. The audio might be too short or contain no speech."
)

type Acquirer interface {
	Acquire(ctx context.Context, url string) (models.AudioAsset, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, asset models.AudioAsset) (models.Transcript, error)
}

type ContentGenerator interface {
	GenerateAll(ctx context.Context, transcript models.Transcript, title, url string, parallel bool) (models.GeneratedContent, []string)
}

// StageError is the only error Process returns. Reason is safe to show to
// end users; Err carries the underlying detail for logs.
type StageError struct {
	Stage  models.Stage
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s failed: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Pipeline struct {
	acquirer    Acquirer
	transcriber Transcriber
	generator   ContentGenerator
	cache       TranscriptCache
	parallel    bool
	cleanup     func(models.AudioAsset) error
	logger      *logrus.Logger

	locksMu sync.Mutex
	locks   map[string]*videoLock
}

type Option func(*Pipeline)

func WithLogger(logger *logrus.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCache enables transcript reuse across runs for the same video.
func WithCache(cache TranscriptCache) Option {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

func WithParallelGeneration(parallel bool) Option {
	return func(p *Pipeline) {
		p.parallel = parallel
	}
}

// WithCleanup replaces how an acquired asset is disposed of.
func WithCleanup(cleanup func(models.AudioAsset) error) Option {
	return func(p *Pipeline) {
		if cleanup != nil {
			p.cleanup = cleanup
		}
	}
}

func New(acquirer Acquirer, transcriber Transcriber, gen ContentGenerator, opts ...Option) *Pipeline {
	p := &Pipeline{
		acquirer:    acquirer,
		transcriber: transcriber,
		generator:   gen,
		cleanup:     acquisition.Cleanup,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline for one request. On failure the error is
// always a *StageError; generation problems never fail a run.
func (p *Pipeline) Process(ctx context.Context, req models.Request) (*models.Result, error) {
	ref, err := validation.Resolve(req.URL)
	if err != nil {
		reason := validation.MessageInvalid
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			reason = verr.Message
		}
		return nil, p.fail(models.StageValidation, reason, err, req.URL)
	}

	log := p.logger.WithFields(logrus.Fields{"url": ref.RawURL, "videoID": ref.ID})

	// The per-video lock covers acquisition and transcription only.
	unlock := func() {}
	if p.cache != nil {
		release, err := p.lockVideo(ctx, ref.ID)
		if err != nil {
			return nil, p.fail(models.StageAcquisition, ReasonAcquisition, err, ref.RawURL)
		}
		unlock = release
		defer unlock()

		if cached, ok := p.lookup(ctx, ref.ID); ok {
			unlock()
			log.Info("Transcript found in cache")
			return p.generate(ctx, ref, req, cached.Title, cached.DurationSeconds, cached.Transcript, true), nil
		}
	}

	log.Info("Acquiring audio")
	asset, err := p.acquire(ctx, ref.RawURL)
	if err != nil {
		return nil, p.fail(models.StageAcquisition, ReasonAcquisition, err, ref.RawURL)
	}
	defer p.release(asset)

	log.WithField("strategy", asset.Strategy).Info("Transcribing audio")
	transcript, err := p.transcribe(ctx, asset)
	if err != nil {
		return nil, p.fail(models.StageTranscription, ReasonTranscription, err, ref.RawURL)
	}

	if p.cache != nil {
		p.store(ctx, CachedTranscript{
			VideoID:         ref.ID,
			Title:           asset.Title,
			DurationSeconds: asset.DurationSeconds,
			Transcript:      transcript,
		})
	}
	unlock()

	return p.generate(ctx, ref, req, asset.Title, asset.DurationSeconds, transcript, false), nil
}

func (p *Pipeline) acquire(ctx context.Context, url string) (asset models.AudioAsset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("acquirer panicked: %v", r)
			p.release(asset)
			asset = models.AudioAsset{}
		}
	}()
	asset, err = p.acquirer.Acquire(ctx, url)
	if err == nil && ctx.Err() != nil {
		p.release(asset)
		return models.AudioAsset{}, ctx.Err()
	}
	return asset, err
}

func (p *Pipeline) transcribe(ctx context.Context, asset models.AudioAsset) (transcript models.Transcript, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panicked: %v", r)
		}
	}()
	transcript, err = p.transcriber.Transcribe(ctx, asset)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return transcript, err
}

func (p *Pipeline) generate(ctx context.Context, ref models.VideoReference, req models.Request, title string, duration int, transcript models.Transcript, cacheHit bool) *models.Result {
	if title == "" {
		title = "Unknown"
	}

	content, degraded := p.generateSafely(ctx, transcript, title, ref.RawURL)
	if len(degraded) > 0 {
		p.logger.WithFields(logrus.Fields{
			"url":      ref.RawURL,
			"degraded": degraded,
		}).Warn("Generation fell back for some fields")
	}

	p.logger.WithFields(logrus.Fields{
		"url":      ref.RawURL,
		"videoID":  ref.ID,
		"cacheHit": cacheHit,
	}).Info("Pipeline completed")

	return &models.Result{
		VideoID:         ref.ID,
		URL:             ref.RawURL,
		Title:           title,
		DurationSeconds: duration,
		Content:         content,
		ContactEmail:    req.ContactEmail,
		Degraded:        degraded,
		CacheHit:        cacheHit,
	}
}

func (p *Pipeline) generateSafely(ctx context.Context, transcript models.Transcript, title, url string) (content models.GeneratedContent, degraded []string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Content generator panicked")
			content = models.GeneratedContent{
				SocialThread:    generator.ThreadFallback,
				ClipSuggestions: generator.SuggestionsFallback,
			}
			degraded = []string{models.FieldSocialThread, models.FieldClipSuggestions}
		}
	}()
	return p.generator.GenerateAll(ctx, transcript, title, url, p.parallel)
}

func (p *Pipeline) release(asset models.AudioAsset) {
	if asset.Path == "" {
		return
	}
	if err := p.cleanup(asset); err != nil {
		p.logger.WithError(err).WithField("path", asset.Path).Warn("Failed to clean up audio asset")
	}
}

func (p *Pipeline) fail(stage models.Stage, reason string, err error, url string) *StageError {
	p.logger.WithError(err).WithFields(logrus.Fields{
		"stage": stage,
		"url":   url,
	}).Error("Pipeline failed")
	return &StageError{Stage: stage, Reason: reason, Err: err}
}
