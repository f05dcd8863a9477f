package adapters

import (
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	domainllm "reqforge/internal/domain/services/llm"
)

// NewLoremBackend returns the offline backend used in development. It needs
// no credential and never rate-limits.
func NewLoremBackend() domainllm.Backend {
	return &providerBackend{
		provider: lorem.NewProvider(),
		name:     "lorem",
		classify: func(err error) error { return err },
	}
}
