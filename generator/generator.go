// Package generator turns a transcript into a social thread and reel clip
// suggestions. Generation never fails outright: any fault yields a fixed
// fallback text and marks the field as degraded.
package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/transcription"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ThreadFallback      = "Failed to generate Twitter thread. Please try again."
	SuggestionsFallback = "Failed to generate reel suggestions. Please try again."
)

// TextGenerator is a single-shot text completion backend.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, maxOutputTokens int, temperature float64) (string, error)
}

type Config struct {
	ThreadLimit     int
	SuggestionLimit int
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		ThreadLimit:     5000,
		SuggestionLimit: 4000,
		MaxOutputTokens: 2000,
		Temperature:     0.7,
		Timeout:         2 * time.Minute,
	}
}

type Generator struct {
	backend TextGenerator
	cfg     Config
	logger  *logrus.Logger
}

func New(backend TextGenerator, cfg Config, logger *logrus.Logger) *Generator {
	defaults := DefaultConfig()
	if cfg.ThreadLimit <= 0 {
		cfg.ThreadLimit = defaults.ThreadLimit
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = defaults.SuggestionLimit
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{backend: backend, cfg: cfg, logger: logger}
}

// Truncate keeps at most limit runes of s. A non-positive limit yields "".
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// GenerateThread returns the thread text and whether it fell back.
func (g *Generator) GenerateThread(ctx context.Context, transcript models.Transcript, title, url string) (string, bool) {
	prompt := buildThreadPrompt(title, Truncate(transcript.Text, g.cfg.ThreadLimit), url)
	return g.generate(ctx, models.FieldSocialThread, prompt, ThreadFallback)
}

// GenerateSuggestions returns the clip suggestions and whether they fell
// back. Timed transcripts get a timestamp listing and timestamped clips.
func (g *Generator) GenerateSuggestions(ctx context.Context, transcript models.Transcript, title string) (string, bool) {
	var prompt string
	if transcript.HasSegments() {
		listing := Truncate(transcription.FormatSegments(transcript.Segments), g.cfg.SuggestionLimit)
		prompt = buildTimedSuggestionsPrompt(title, listing)
	} else {
		prompt = buildPlainSuggestionsPrompt(title, Truncate(transcript.Text, g.cfg.SuggestionLimit))
	}
	return g.generate(ctx, models.FieldClipSuggestions, prompt, SuggestionsFallback)
}

// GenerateAll produces both fields. Sequential runs do the thread first.
// The returned slice names the fields that fell back.
func (g *Generator) GenerateAll(ctx context.Context, transcript models.Transcript, title, url string, parallel bool) (models.GeneratedContent, []string) {
	var (
		content                      models.GeneratedContent
		threadFailed, suggestsFailed bool
	)

	if parallel {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			content.SocialThread, threadFailed = g.GenerateThread(ctx, transcript, title, url)
		}()
		go func() {
			defer wg.Done()
			content.ClipSuggestions, suggestsFailed = g.GenerateSuggestions(ctx, transcript, title)
		}()
		wg.Wait()
	} else {
		content.SocialThread, threadFailed = g.GenerateThread(ctx, transcript, title, url)
		content.ClipSuggestions, suggestsFailed = g.GenerateSuggestions(ctx, transcript, title)
	}

	var degraded []string
	if threadFailed {
		degraded = append(degraded, models.FieldSocialThread)
	}
	if suggestsFailed {
		degraded = append(degraded, models.FieldClipSuggestions)
	}
	return content, degraded
}

func (g *Generator) generate(ctx context.Context, field, prompt, fallback string) (string, bool) {
	text, err := g.complete(ctx, prompt)
	if err != nil {
		g.logger.WithError(err).WithField("field", field).Error("Generation failed, using fallback")
		return fallback, true
	}
	g.logger.WithFields(logrus.Fields{
		"field": field,
		"chars": len(text),
	}).Info("Generation completed")
	return text, false
}

func (g *Generator) complete(ctx context.Context, prompt string) (text string, err error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()

	text, err = g.backend.Complete(ctx, prompt, g.cfg.MaxOutputTokens, g.cfg.Temperature)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
