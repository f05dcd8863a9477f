package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/config"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name        string
		modelStr    string
		wantBackend string
		wantModel   string
		wantErr     bool
	}{
		{"claude with version", "claude-haiku-4-5", BackendAnthropic, "claude-haiku-4-5", false},
		{"gemini", "gemini-1.5-flash", BackendGemini, "gemini-1.5-flash", false},
		{"explicit prefix", "anthropic/claude-sonnet-4-5", BackendAnthropic, "claude-sonnet-4-5", false},
		{"prefix is case-insensitive", "Gemini/gemini-pro", BackendGemini, "gemini-pro", false},
		{"lorem", "lorem-fast", BackendLorem, "lorem-fast", false},
		{"empty", "", "", "", true},
		{"unknown", "mystery-model", "", "", true},
		{"empty backend", "/claude-haiku-4-5", "", "", true},
		{"empty model", "anthropic/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModel(tt.modelStr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, got.Backend)
			assert.Equal(t, tt.wantModel, got.Model)
		})
	}
}

func TestResolveGeneration(t *testing.T) {
	tests := []struct {
		name        string
		in          config.GenerationConfig
		wantBackend string
		wantModel   string
		wantErr     bool
	}{
		{"inferred", config.GenerationConfig{Model: "gemini-1.5-flash"}, BackendGemini, "gemini-1.5-flash", false},
		{"prefix stripped", config.GenerationConfig{Model: "anthropic/claude-haiku-4-5"}, BackendAnthropic, "claude-haiku-4-5", false},
		{"explicit backend keeps unknown model", config.GenerationConfig{Backend: "anthropic", Model: "custom-tuned"}, "anthropic", "custom-tuned", false},
		{"explicit backend beats name guess", config.GenerationConfig{Backend: "lorem", Model: "claude-haiku-4-5"}, "lorem", "claude-haiku-4-5", false},
		{"prefix contradicts backend", config.GenerationConfig{Backend: "gemini", Model: "anthropic/claude-haiku-4-5"}, "", "", true},
		{"nothing to infer from", config.GenerationConfig{Model: "mystery"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveGeneration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, got.Backend)
			assert.Equal(t, tt.wantModel, got.Model)
		})
	}
}
