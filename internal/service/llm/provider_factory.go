package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"reqforge/internal/config"
	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/service/llm/adapters"
)

// BuildBackends creates one backend per configured credential for the
// selected backend family. The returned closer releases client connections.
//
// Supported backends:
//   - "gemini"    - Vertex AI, one client per service-account file
//   - "anthropic" - Claude, one provider per API key
//   - "lorem"     - offline mock, no credential
func BuildBackends(ctx context.Context, cfg config.GenerationConfig, logger *slog.Logger) ([]domainllm.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendAnthropic:
		backends := make([]domainllm.Backend, 0, len(cfg.APIKeys))
		for i, key := range cfg.APIKeys {
			b, err := adapters.NewAnthropicBackend(key)
			if err != nil {
				return nil, noop, fmt.Errorf("anthropic credential %d: %w", i, err)
			}
			backends = append(backends, b)
		}
		logger.Info("generation backends ready", "backend", cfg.Backend, "credentials", len(backends))
		return backends, noop, nil

	case BackendGemini:
		files := cfg.VertexCredentialFiles
		if len(files) == 0 && cfg.VertexProjectID != "" {
			files = []string{""} // Application default credentials
		}

		var (
			backends []domainllm.Backend
			closers  []io.Closer
		)
		closeAll := func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c.Close())
			}
			return errors.Join(errs...)
		}

		for i, file := range files {
			b, err := adapters.NewVertexBackend(ctx, cfg.VertexProjectID, cfg.VertexRegion, file)
			if err != nil {
				_ = closeAll()
				return nil, noop, fmt.Errorf("vertex credential %d: %w", i, err)
			}
			backends = append(backends, b)
			closers = append(closers, b)
		}
		logger.Info("generation backends ready", "backend", cfg.Backend, "credentials", len(backends))
		return backends, closeAll, nil

	case BackendLorem:
		return []domainllm.Backend{adapters.NewLoremBackend()}, noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported generation backend: %s", cfg.Backend)
	}
}
