package converter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	brdSvc "reqforge/internal/domain/services/brd"
)

type textConverter struct {
	name string
	exts []string
}

// NewTextConverter handles plain text and delimited data files.
func NewTextConverter() brdSvc.ContentConverter {
	return &textConverter{name: "text", exts: []string{".txt", ".csv", ".tsv", ".json", ".log"}}
}

type markdownConverter struct{}

// NewMarkdownConverter passes Markdown through, dropping YAML frontmatter.
// A frontmatter title becomes the top heading.
func NewMarkdownConverter() brdSvc.ContentConverter {
	return &markdownConverter{}
}

func (c *markdownConverter) Convert(ctx context.Context, input []byte) (string, error) {
	if !utf8.Valid(input) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}

	metadata, body, err := parseFrontmatter(input)
	if err != nil {
		// Malformed or absent frontmatter is left in the text
		return string(input), nil
	}

	text := strings.TrimLeft(string(body), "\r\n")
	if title, ok := metadata["title"].(string); ok && strings.TrimSpace(title) != "" {
		text = "# " + strings.TrimSpace(title) + "\n\n" + text
	}
	return text, nil
}

func (c *markdownConverter) SupportedExtensions() []string { return []string{".md", ".markdown"} }
func (c *markdownConverter) Name() string                  { return "markdown" }

func (c *textConverter) Convert(ctx context.Context, input []byte) (string, error) {
	if !utf8.Valid(input) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return string(input), nil
}

func (c *textConverter) SupportedExtensions() []string { return c.exts }
func (c *textConverter) Name() string                  { return c.name }
