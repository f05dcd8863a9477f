// Package prompt assembles the bounded text prompt sent to the generation
// backend for one conversation turn.
package prompt

import (
	"fmt"
	"strings"

	"reqforge/internal/domain/models/brd"
)

const (
	// TruncationMarker is appended to any source cut down to the budget.
	TruncationMarker = "\n[content truncated]"

	// NoDocumentPlaceholder stands in for a missing BRD.
	NoDocumentPlaceholder = "(No BRD has been generated yet)"

	noUploadsPlaceholder = "(No documents have been uploaded)"
	noHistoryPlaceholder = "(No previous messages)"

	// historyTurnBudget caps each replayed turn; history is context, not source material.
	historyTurnBudget = 2000
)

// ResponseSchema is the exact JSON shape the model must answer with.
const ResponseSchema = `{
  "message": "A helpful text response to the user.",
  "suggestions": [{"text": "Provide a success metric"}, {"text": "Identify delivery risks"}],
  "documentUpdate": "The full updated BRD markdown text here, or null if no update is needed."
}`

// Input is everything a prompt is built from. Document is nil when the
// project has no BRD yet.
type Input struct {
	Project              *brd.Project
	Document             *brd.Document
	Uploads              []brd.Upload
	History              []brd.Turn
	Message              string
	TemplateInstructions string
}

// Assembler builds prompts. It holds no mutable state; the same Input always
// yields the same prompt.
type Assembler struct {
	budget int
	window int
}

// NewAssembler creates an assembler that truncates each source to budget
// characters and replays at most window previous turns.
func NewAssembler(budget, window int) *Assembler {
	if window < 0 {
		window = 0
	}
	return &Assembler{budget: budget, window: window}
}

// Assemble concatenates, in fixed order: role framing, project identity,
// template instructions, uploaded documents, current BRD, recent
// conversation, the new message and the output contract.
func (a *Assembler) Assemble(in Input) string {
	var b strings.Builder

	name, description, template := "", "", brd.TemplateType("")
	if in.Project != nil {
		name, description, template = in.Project.Name, in.Project.Description, in.Project.TemplateType
	}
	if strings.TrimSpace(description) == "" {
		description = "N/A"
	}

	fmt.Fprintf(&b, "Context: You are an expert Business Analyst working on Project: \"%s\".\n", name)
	fmt.Fprintf(&b, "Project Description: \"%s\"\n", description)
	fmt.Fprintf(&b, "Template Type: %s\n", template)

	if in.TemplateInstructions != "" {
		b.WriteString("\n")
		b.WriteString(in.TemplateInstructions)
		b.WriteString("\n")
	}

	b.WriteString("\n--- UPLOADED DOCUMENT CONTEXT ---\n")
	b.WriteString(a.uploadsBlock(in.Uploads))
	b.WriteString("--- END OF UPLOADED DOCUMENT CONTEXT ---\n")

	b.WriteString("\n--- CURRENT BRD STATE ---\n")
	b.WriteString(documentBlock(in.Document))
	b.WriteString("\n--- END OF CURRENT BRD STATE ---\n")

	b.WriteString("\n--- RECENT CONVERSATION ---\n")
	b.WriteString(a.historyBlock(in.History))
	b.WriteString("--- END OF RECENT CONVERSATION ---\n")

	fmt.Fprintf(&b, "\nUser Input: \"%s\"\n", in.Message)

	b.WriteString(`
Task: Provide a professional response to the user. Use the uploaded document context above when it is relevant to the request.
If the user is asking to create, modify, or refine requirements, provide the full updated Markdown content of the BRD in "documentUpdate". Follow the template instructions strictly.
CRITICAL: ONLY provide a "documentUpdate" string if you made actual changes to the BRD. If you are only answering a question, "documentUpdate" MUST be null. Never repeat the unchanged BRD.

CRITICAL: You MUST return exactly one VALID JSON object in this format:
`)
	b.WriteString(ResponseSchema)
	b.WriteString("\nDo not include any text outside of the JSON object.\n")

	return b.String()
}

func (a *Assembler) uploadsBlock(uploads []brd.Upload) string {
	var b strings.Builder
	n := 0
	for _, u := range uploads {
		if u.ExtractedText == nil || strings.TrimSpace(*u.ExtractedText) == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "Document %d (%s):\n%s\n\n", n, u.OriginalName, Truncate(*u.ExtractedText, a.budget))
	}
	if n == 0 {
		return noUploadsPlaceholder + "\n"
	}
	return b.String()
}

func documentBlock(doc *brd.Document) string {
	if doc == nil || doc.Content.IsZero() {
		return NoDocumentPlaceholder
	}
	return doc.Content.Render()
}

func (a *Assembler) historyBlock(turns []brd.Turn) string {
	if len(turns) > a.window {
		turns = turns[len(turns)-a.window:]
	}
	if len(turns) == 0 {
		return noHistoryPlaceholder + "\n"
	}

	var b strings.Builder
	for _, t := range turns {
		speaker := "User"
		if t.Role == brd.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, Truncate(t.Content, historyTurnBudget))
	}
	return b.String()
}

// Truncate keeps the first budget characters of text and appends
// TruncationMarker when anything was cut. A non-positive budget disables
// truncation.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget]) + TruncationMarker
}
