package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/metrics"
)

// scriptedBackend returns the queued results in order and records each call.
type scriptedBackend struct {
	name    string
	mu      sync.Mutex
	results []error
	calls   int
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Generate(ctx context.Context, prompt, model string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if len(b.results) == 0 {
		return "reply from " + b.name, nil
	}
	err := b.results[0]
	b.results = b.results[1:]
	if err != nil {
		return "", err
	}
	return "reply from " + b.name, nil
}

func rateLimited(name string) error {
	return &domainllm.RateLimitError{Backend: name, Err: errors.New("429")}
}

func newTestClient(t *testing.T, backends ...domainllm.Backend) (*Client, *[]time.Duration, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	c := NewClient(backends, 1500*time.Millisecond, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps, m
}

func TestGenerate_RateLimitRotatesWithoutDelay(t *testing.T) {
	first := &scriptedBackend{name: "key-1", results: []error{rateLimited("key-1")}}
	second := &scriptedBackend{name: "key-2"}
	c, sleeps, _ := newTestClient(t, first, second)

	text, err := c.Generate(context.Background(), "prompt", "model", 2)

	require.NoError(t, err)
	assert.Equal(t, "reply from key-2", text)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Empty(t, *sleeps)
}

func TestGenerate_BothRateLimitedFailsAfterTwoAttempts(t *testing.T) {
	first := &scriptedBackend{name: "key-1", results: []error{rateLimited("key-1")}}
	second := &scriptedBackend{name: "key-2", results: []error{rateLimited("key-2")}}
	c, sleeps, m := newTestClient(t, first, second)

	_, err := c.Generate(context.Background(), "prompt", "model", 2)

	var genErr *domainllm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempts)
	assert.True(t, domainllm.IsRateLimit(err), "last failure is preserved")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Empty(t, *sleeps)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("key-1", metrics.OutcomeRateLimited))+
		testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("key-2", metrics.OutcomeRateLimited)))
}

func TestGenerate_LinearBackoffOnOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	only := &scriptedBackend{name: "key-1", results: []error{boom, boom, boom}}
	c, sleeps, _ := newTestClient(t, only)

	_, err := c.Generate(context.Background(), "prompt", "model", 3)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, only.calls)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3000 * time.Millisecond}, *sleeps)
}

func TestGenerate_SingleCredentialRateLimitBacksOff(t *testing.T) {
	only := &scriptedBackend{name: "key-1", results: []error{rateLimited("key-1")}}
	c, sleeps, _ := newTestClient(t, only)

	text, err := c.Generate(context.Background(), "prompt", "model", 2)

	require.NoError(t, err)
	assert.Equal(t, "reply from key-1", text)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, *sleeps)
}

func TestGenerate_NoCredentials(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.Generate(context.Background(), "prompt", "model", 3)
	assert.ErrorIs(t, err, domainllm.ErrNoCredentials)
}

func TestGenerate_RotationAdvancesAcrossCalls(t *testing.T) {
	a := &scriptedBackend{name: "a"}
	b := &scriptedBackend{name: "b"}
	c, _, _ := newTestClient(t, a, b)

	var got []string
	for i := 0; i < 4; i++ {
		text, err := c.Generate(context.Background(), "p", "m", 1)
		require.NoError(t, err)
		got = append(got, text)
	}

	assert.Equal(t, []string{"reply from a", "reply from b", "reply from a", "reply from b"}, got)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	only := &scriptedBackend{name: "key-1", results: []error{errors.New("boom")}}
	c, _, _ := newTestClient(t, only)
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, "p", "m", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, only.calls)
}
