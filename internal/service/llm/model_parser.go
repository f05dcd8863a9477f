package llm

import (
	"fmt"
	"strings"

	"reqforge/internal/config"
)

// Backend families accepted by BuildBackends.
const (
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendLorem     = "lorem"
)

// ModelInfo is a model identifier resolved to its backend family.
type ModelInfo struct {
	Backend string
	Model   string // Identifier sent to the backend, without a family prefix
}

// ParseModel resolves the backend family of a model string.
//
// Supported formats:
//   - "claude-haiku-4-5" → {Backend: "anthropic", Model: "claude-haiku-4-5"}
//   - "gemini-1.5-flash" → {Backend: "gemini", Model: "gemini-1.5-flash"}
//   - "anthropic/claude-sonnet-4-5" → {Backend: "anthropic", Model: "claude-sonnet-4-5"}
//   - "lorem-fast" → {Backend: "lorem", Model: "lorem-fast"}
func ParseModel(modelStr string) (*ModelInfo, error) {
	if modelStr == "" {
		return nil, fmt.Errorf("model string cannot be empty")
	}

	if backend, model, ok := strings.Cut(modelStr, "/"); ok {
		if backend == "" || model == "" {
			return nil, fmt.Errorf("invalid model format: %s (expected backend/model)", modelStr)
		}
		return &ModelInfo{Backend: strings.ToLower(backend), Model: model}, nil
	}

	backend := inferBackend(modelStr)
	if backend == "" {
		return nil, fmt.Errorf("unable to infer backend from model: %s", modelStr)
	}
	return &ModelInfo{Backend: backend, Model: modelStr}, nil
}

func inferBackend(model string) string {
	modelLower := strings.ToLower(model)

	switch {
	case strings.HasPrefix(modelLower, "claude-"):
		return BackendAnthropic
	case strings.HasPrefix(modelLower, "gemini-"):
		return BackendGemini
	case strings.HasPrefix(modelLower, "lorem"):
		return BackendLorem
	}
	return ""
}

// ResolveGeneration fills in the backend family when it is not configured
// and strips a family prefix from the model. An explicit backend that
// disagrees with the model prefix is an error.
func ResolveGeneration(cfg config.GenerationConfig) (config.GenerationConfig, error) {
	info, err := ParseModel(cfg.Model)
	if err != nil {
		if cfg.Backend == "" {
			return cfg, err
		}
		// Unknown model name for an explicit backend; pass it through
		return cfg, nil
	}

	if cfg.Backend != "" && !strings.EqualFold(cfg.Backend, info.Backend) {
		if strings.Contains(cfg.Model, "/") {
			return cfg, fmt.Errorf("model %q does not belong to backend %q", cfg.Model, cfg.Backend)
		}
		// Explicit backend wins over a name-based guess
		return cfg, nil
	}

	cfg.Backend = info.Backend
	cfg.Model = info.Model
	return cfg, nil
}
