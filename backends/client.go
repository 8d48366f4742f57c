// Package backends talks to hosted speech-to-text and text-generation APIs.
// Each client implements both transcription.Backend and generator.TextGenerator.
package backends

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPTimeout    = 5 * time.Minute
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	bodySnippetLimit      = 300
)

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// client holds the HTTP and retry plumbing shared by every backend.
type client struct {
	httpClient *http.Client
	logger     *logrus.Logger

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

type Option func(*client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithRetryAttempts(attempts int) Option {
	return func(c *client) {
		c.retryAttempts = attempts
	}
}

func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *client) {
		c.retryBaseDelay = base
		c.retryMaxDelay = max
	}
}

// WithSleeper replaces the retry wait, mostly for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *client) {
		c.sleeper = sleeper
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newClient(opts []Option) client {
	c := client{
		httpClient:     &http.Client{Timeout: defaultHTTPTimeout},
		logger:         logrus.StandardLogger(),
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.retryAttempts <= 0 {
		c.retryAttempts = 1
	}
	return c
}

// do sends the request built by newRequest, retrying on 408, 429, 5xx and
// network timeouts. newRequest is called once per attempt so bodies can be
// re-read.
func (c *client) do(ctx context.Context, op string, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		body, err := c.doOnce(ctx, newRequest)
		if err == nil {
			return body, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return nil, errors.Wrap(err, op)
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("Upstream request failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, errors.Wrap(err, op)
		}
	}
	return nil, errors.Wrapf(lastErr, "%s: failed after %d attempts", op, c.retryAttempts)
}

func (c *client) doOnce(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := newRequest(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func (c *client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.retryAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !statusErr.retryable() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return c.capDelay(statusErr.RetryAfter), true
		}
		return c.backoff(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from the base delay: attempt 1 waits base, 2 waits 2*base.
func (c *client) backoff(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt && delay < c.retryMaxDelay; i++ {
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

func snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) > bodySnippetLimit {
		return string(runes[:bodySnippetLimit]) + "..."
	}
	return body
}
