package brd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ContentKind tags the shape of a document body.
type ContentKind string

const (
	ContentMarkdown   ContentKind = "markdown"
	ContentStructured ContentKind = "structured"
)

// Content is a BRD body: either a Markdown blob or a map of section name to
// text or nested object. Exactly one of Markdown/Sections is meaningful,
// selected by Kind.
type Content struct {
	Kind     ContentKind
	Markdown string
	Sections map[string]any
}

func MarkdownContent(text string) Content {
	return Content{Kind: ContentMarkdown, Markdown: text}
}

func StructuredContent(sections map[string]any) Content {
	return Content{Kind: ContentStructured, Sections: sections}
}

// IsZero reports whether the content carries no text at all.
func (c Content) IsZero() bool {
	switch c.Kind {
	case ContentMarkdown:
		return strings.TrimSpace(c.Markdown) == ""
	case ContentStructured:
		return len(c.Sections) == 0
	default:
		return true
	}
}

// Render returns the content as Markdown. Structured sections are emitted as
// level-two headings in name order.
func (c Content) Render() string {
	switch c.Kind {
	case ContentMarkdown:
		return c.Markdown
	case ContentStructured:
		names := make([]string, 0, len(c.Sections))
		for name := range c.Sections {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		for i, name := range names {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "## %s\n\n%s", name, renderValue(c.Sections[name]))
		}
		return b.String()
	default:
		return ""
	}
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			lines = append(lines, "- "+strings.ReplaceAll(renderValue(item), "\n", " "))
		}
		return strings.Join(lines, "\n")
	case nil:
		return ""
	default:
		raw, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return fmt.Sprint(val)
		}
		return "```json\n" + string(raw) + "\n```"
	}
}

type contentJSON struct {
	Kind     ContentKind    `json:"kind"`
	Markdown string         `json:"markdown,omitempty"`
	Sections map[string]any `json:"sections,omitempty"`
}

func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentJSON{Kind: c.Kind, Markdown: c.Markdown, Sections: c.Sections})
}

// UnmarshalJSON accepts the tagged form, a bare string (Markdown) or a bare
// object (Structured).
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = Content{}
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = MarkdownContent(text)
		return nil
	}

	var tagged contentJSON
	if err := json.Unmarshal(data, &tagged); err == nil && (tagged.Kind == ContentMarkdown || tagged.Kind == ContentStructured) {
		*c = Content{Kind: tagged.Kind, Markdown: tagged.Markdown, Sections: tagged.Sections}
		return nil
	}

	var sections map[string]any
	if err := json.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("document content must be a string or an object: %w", err)
	}
	*c = StructuredContent(sections)
	return nil
}
