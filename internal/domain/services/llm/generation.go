package llm

import (
	"context"
	"errors"
	"fmt"
)

// Backend issues a single text-generation call bound to one credential.
// Implementations translate provider quota errors into *RateLimitError.
type Backend interface {
	Generate(ctx context.Context, prompt, model string) (string, error)

	// Name identifies the backend family (anthropic, gemini, lorem)
	Name() string
}

// Generator turns a prompt into raw model text, retrying across credentials.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, maxAttempts int) (string, error)
}

// ErrNoCredentials is the configuration error raised when the credential
// pool is empty. It is never retried.
var ErrNoCredentials = errors.New("no generation credentials configured")

// RateLimitError marks a quota or rate-limit rejection from the provider.
type RateLimitError struct {
	Backend string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Backend, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// GenerationError is returned once every attempt has failed. Err is the last
// observed failure.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
