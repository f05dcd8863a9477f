package adapters

import (
	"context"
	"fmt"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"

	domainllm "reqforge/internal/domain/services/llm"
)

// providerBackend adapts a meridian-llm-go provider to the single-prompt
// Backend interface. One instance is bound to one credential.
type providerBackend struct {
	provider llmprovider.Provider
	name     string
	classify func(error) error
}

var _ domainllm.Backend = (*providerBackend)(nil)

func (b *providerBackend) Name() string { return b.name }

// Generate sends prompt as a single user message and concatenates the text
// blocks of the reply.
func (b *providerBackend) Generate(ctx context.Context, prompt, model string) (string, error) {
	req := &llmprovider.GenerateRequest{
		Messages: []llmprovider.Message{
			{
				Role: "user",
				Blocks: []*llmprovider.Block{
					{BlockType: "text", Sequence: 0, TextContent: &prompt},
				},
			},
		},
		Model: model,
	}

	resp, err := b.provider.GenerateResponse(ctx, req)
	if err != nil {
		return "", b.classify(err)
	}

	var sb strings.Builder
	for _, block := range resp.Blocks {
		if block == nil || block.TextContent == nil {
			continue
		}
		sb.WriteString(*block.TextContent)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%s: response contained no text", b.name)
	}
	return sb.String(), nil
}
