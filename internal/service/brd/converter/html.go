package converter

import (
	"context"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/microcosm-cc/bluemonday"

	brdSvc "reqforge/internal/domain/services/brd"
)

// htmlConverter sanitizes uploaded HTML, then converts it to Markdown.
type htmlConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

func NewHTMLConverter() brdSvc.ContentConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &htmlConverter{
		policy:    bluemonday.UGCPolicy(),
		converter: converter,
	}
}

func (c *htmlConverter) Convert(ctx context.Context, input []byte) (string, error) {
	sanitized := c.policy.SanitizeBytes(input)
	markdown, err := c.converter.ConvertBytes(sanitized)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return string(markdown), nil
}

func (c *htmlConverter) SupportedExtensions() []string { return []string{".html", ".htm"} }
func (c *htmlConverter) Name() string                  { return "html" }
