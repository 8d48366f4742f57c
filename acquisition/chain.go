// Package acquisition downloads a video's audio by walking an ordered list of
// download strategies until one of them produces a usable audio file.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/clipzaar/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDelay = 1 * time.Second
	MaxDelay     = 2 * time.Second
)

var (
	ErrNoStrategies       = errors.New("no acquisition strategies configured")
	ErrEmptyOutput        = errors.New("strategy produced no audio file")
	ErrUnrecognizedFormat = errors.New("strategy produced an unrecognized audio format")
)

// Strategy is one way of fetching a video's audio into its own scratch
// directory.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url string) (models.AudioAsset, error)
}

// DelayFunc is called before every attempt after the first. attempt is the
// zero-based index of the attempt about to run.
type DelayFunc func(ctx context.Context, attempt int) error

// FixedDelay waits d between attempts. d is clamped to [0, MaxDelay].
func FixedDelay(d time.Duration) DelayFunc {
	if d < 0 {
		d = 0
	}
	if d > MaxDelay {
		d = MaxDelay
	}
	return func(ctx context.Context, attempt int) error {
		if d == 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// AcquisitionError is returned when every strategy failed. It unwraps to the
// last underlying error.
type AcquisitionError struct {
	Attempts []AttemptError
}

func (e *AcquisitionError) Error() string {
	last := e.Last()
	if last == nil {
		return "audio acquisition failed"
	}
	return fmt.Sprintf("all %d acquisition strategies failed, last error: %v", len(e.Attempts), last)
}

func (e *AcquisitionError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}

func (e *AcquisitionError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

type Chain struct {
	strategies     []Strategy
	delay          DelayFunc
	attemptTimeout time.Duration
	logger         *logrus.Logger
}

type Option func(*Chain)

func WithDelay(delay DelayFunc) Option {
	return func(c *Chain) {
		if delay != nil {
			c.delay = delay
		}
	}
}

// WithAttemptTimeout bounds each strategy call. Zero means no bound beyond
// the caller's context.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Chain) {
		c.attemptTimeout = d
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewChain(strategies []Strategy, opts ...Option) (*Chain, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	c := &Chain{
		strategies: append([]Strategy(nil), strategies...),
		delay:      FixedDelay(DefaultDelay),
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Names lists the strategies in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Acquire tries each strategy in order and returns the first usable asset.
// Strategy faults, including panics, never escape: they are collected into an
// *AcquisitionError.
func (c *Chain) Acquire(ctx context.Context, url string) (models.AudioAsset, error) {
	attempts := make([]AttemptError, 0, len(c.strategies))

	for i, strategy := range c.strategies {
		if i > 0 {
			if err := c.delay(ctx, i); err != nil {
				attempts = append(attempts, AttemptError{Strategy: strategy.Name(), Err: err})
				break
			}
		}

		c.logger.WithFields(logrus.Fields{
			"strategy": strategy.Name(),
			"attempt":  i + 1,
			"of":       len(c.strategies),
			"url":      url,
		}).Info("Trying download strategy")

		asset, err := c.attempt(ctx, strategy, url)
		if err == nil {
			c.logger.WithFields(logrus.Fields{
				"strategy": strategy.Name(),
				"path":     asset.Path,
				"title":    asset.Title,
			}).Info("Download strategy succeeded")
			return asset, nil
		}

		c.logger.WithError(err).WithField("strategy", strategy.Name()).Warn("Download strategy failed")
		attempts = append(attempts, AttemptError{Strategy: strategy.Name(), Err: err})
	}

	c.logger.WithField("url", url).Error("All download strategies failed")
	return models.AudioAsset{}, &AcquisitionError{Attempts: attempts}
}

func (c *Chain) attempt(ctx context.Context, strategy Strategy, url string) (asset models.AudioAsset, err error) {
	attemptCtx := ctx
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("strategy panicked: %v", r)
		}
		if err != nil {
			if cleanupErr := Cleanup(asset); cleanupErr != nil {
				c.logger.WithError(cleanupErr).WithField("strategy", strategy.Name()).Warn("Failed to remove partial download")
			}
		}
	}()

	asset, err = strategy.Fetch(attemptCtx, url)
	if err != nil {
		return asset, err
	}
	if err = verifyAudioFile(asset.Path); err != nil {
		return asset, err
	}
	if asset.Strategy == "" {
		asset.Strategy = strategy.Name()
	}
	return asset, nil
}
