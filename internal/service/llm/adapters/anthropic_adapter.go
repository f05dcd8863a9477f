package adapters

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"

	domainllm "reqforge/internal/domain/services/llm"
)

const anthropicName = "anthropic"

// NewAnthropicBackend binds a Claude backend to one API key.
func NewAnthropicBackend(apiKey string) (domainllm.Backend, error) {
	if apiKey == "" {
		return nil, domainllm.ErrNoCredentials
	}

	provider, err := anthropic.NewProvider(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	return &providerBackend{
		provider: provider,
		name:     anthropicName,
		classify: classifyAnthropicError,
	}, nil
}

// classifyAnthropicError wraps quota rejections in *RateLimitError. The
// provider library may flatten SDK errors into text, so the message is
// checked when the typed error is gone.
func classifyAnthropicError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &domainllm.RateLimitError{Backend: anthropicName, Err: err}
		}
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429") || strings.Contains(msg, "overloaded") {
		return &domainllm.RateLimitError{Backend: anthropicName, Err: err}
	}
	return err
}
