package templates

import (
	"fmt"
	"strings"

	"reqforge/internal/domain/models/brd"
)

// Section is one required heading of a template.
type Section struct {
	Title    string   `yaml:"title" json:"title"`
	Guidance string   `yaml:"guidance" json:"guidance,omitempty"`
	Table    []string `yaml:"table" json:"table,omitempty"` // Column names when the section must be a Markdown table
}

// Template is the structural contract for one BRD flavour.
type Template struct {
	ID          brd.TemplateType `yaml:"id" json:"id"`
	DisplayName string           `yaml:"display_name" json:"display_name"`
	Preamble    string           `yaml:"preamble" json:"preamble"`
	Heading     string           `yaml:"heading" json:"-"`
	Sections    []Section        `yaml:"sections" json:"sections"`
	Rules       []string         `yaml:"rules" json:"rules,omitempty"`
}

// Instructions renders the prompt text for the template.
func (t *Template) Instructions() string {
	var b strings.Builder

	b.WriteString(t.Preamble)
	b.WriteString("\n")
	if t.Heading != "" {
		b.WriteString(t.Heading)
		b.WriteString("\n")
	}

	var tableSections []string
	for i, s := range t.Sections {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Title)

		var notes []string
		if len(s.Table) > 0 {
			notes = append(notes, "MUST be a Markdown Table with columns: "+strings.Join(s.Table, ", "))
			tableSections = append(tableSections, fmt.Sprint(i+1))
		}
		if s.Guidance != "" {
			notes = append(notes, s.Guidance)
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(notes, " - "))
		}
		b.WriteString("\n")
	}

	if len(tableSections) > 0 {
		fmt.Fprintf(&b, "CRITICAL: For sections %s, you MUST generate valid Markdown tables. Do not use plain text lists for those sections.\n",
			joinList(tableSections))
	}

	for _, rule := range t.Rules {
		b.WriteString(rule)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// joinList formats ["4","5","6"] as "4, 5, and 6".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
