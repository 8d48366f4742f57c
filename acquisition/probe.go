package acquisition

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ProbeResult reports how one strategy fared on its own.
type ProbeResult struct {
	Strategy        string `json:"strategy"`
	Success         bool   `json:"success"`
	Title           string `json:"title,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Probe runs every strategy independently, without stopping at the first
// success, and removes whatever each one downloaded. It is a diagnostic for
// networks where some strategies are blocked.
func (c *Chain) Probe(ctx context.Context, url string) []ProbeResult {
	results := make([]ProbeResult, 0, len(c.strategies))

	for i, strategy := range c.strategies {
		if i > 0 {
			if err := c.delay(ctx, i); err != nil {
				results = append(results, ProbeResult{Strategy: strategy.Name(), Error: err.Error()})
				continue
			}
		}

		asset, err := c.attempt(ctx, strategy, url)
		if err != nil {
			results = append(results, ProbeResult{Strategy: strategy.Name(), Error: err.Error()})
			continue
		}

		results = append(results, ProbeResult{
			Strategy:        strategy.Name(),
			Success:         true,
			Title:           asset.Title,
			DurationSeconds: asset.DurationSeconds,
		})

		if err := Cleanup(asset); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"strategy": strategy.Name(),
				"path":     asset.Path,
			}).Warn("Failed to remove probe download")
		}
	}

	return results
}
