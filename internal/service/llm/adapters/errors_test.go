package adapters

import (
	"errors"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainllm "reqforge/internal/domain/services/llm"
)

func TestClassifyAnthropicError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed 429", &anthropicsdk.Error{StatusCode: 429}, true},
		{"typed 500", &anthropicsdk.Error{StatusCode: 500}, false},
		{"flattened rate limit", errors.New(`POST "/v1/messages": 429 Too Many Requests {"type":"rate_limit_error"}`), true},
		{"other", errors.New("invalid x-api-key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domainllm.IsRateLimit(classifyAnthropicError(tt.err)))
		})
	}
}

func TestClassifyGoogleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"googleapi 429", &googleapi.Error{Code: 429}, true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "exhausted"), true},
		{"quota text", errors.New("Quota exceeded for aiplatform"), true},
		{"permission denied", status.Error(codes.PermissionDenied, "denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domainllm.IsRateLimit(classifyGoogleError(tt.err)))
		})
	}
}

func TestNewAnthropicBackend_EmptyKey(t *testing.T) {
	_, err := NewAnthropicBackend("")
	assert.ErrorIs(t, err, domainllm.ErrNoCredentials)
}
