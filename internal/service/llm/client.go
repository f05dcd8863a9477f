package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/metrics"
)

// Client rotates over a pool of backends, one per credential. The rotation
// index belongs to the client and advances on every attempt, success or not.
type Client struct {
	backends    []domainllm.Backend
	next        atomic.Uint64
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

var _ domainllm.Generator = (*Client)(nil)

// NewClient creates a client over backends. An empty pool is accepted here
// and reported by Generate so the server can still start.
func NewClient(backends []domainllm.Backend, backoffBase time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		backends:    backends,
		backoffBase: backoffBase,
		sleep:       sleepContext,
		metrics:     m,
		logger:      logger,
	}
}

// Generate issues up to maxAttempts calls. A rate-limited attempt moves to the
// next credential immediately when more than one exists; any other failure
// waits backoffBase × attempt first.
func (c *Client) Generate(ctx context.Context, prompt, model string, maxAttempts int) (string, error) {
	if len(c.backends) == 0 {
		return "", domainllm.ErrNoCredentials
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		backend := c.pick()
		start := time.Now()

		text, err := backend.Generate(ctx, prompt, model)
		if err == nil {
			c.record(backend.Name(), metrics.OutcomeOK)
			c.logger.Debug("generation succeeded",
				"backend", backend.Name(),
				"model", model,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return text, nil
		}
		lastErr = err

		if errors.Is(err, domainllm.ErrNoCredentials) {
			return "", err
		}

		rateLimited := domainllm.IsRateLimit(err)
		if rateLimited {
			c.record(backend.Name(), metrics.OutcomeRateLimited)
		} else {
			c.record(backend.Name(), metrics.OutcomeError)
		}

		c.logger.Warn("generation attempt failed",
			"backend", backend.Name(),
			"model", model,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"rate_limited", rateLimited,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}
		if rateLimited && len(c.backends) > 1 {
			continue
		}
		if err := c.sleep(ctx, c.backoffBase*time.Duration(attempt)); err != nil {
			return "", &domainllm.GenerationError{Attempts: attempt, Err: err}
		}
	}

	return "", &domainllm.GenerationError{Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) pick() domainllm.Backend {
	i := c.next.Add(1) - 1
	return c.backends[i%uint64(len(c.backends))]
}

func (c *Client) record(backend, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.GenerationAttempts.WithLabelValues(backend, outcome).Inc()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
