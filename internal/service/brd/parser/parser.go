// Package parser turns raw model output into a structured turn result.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"reqforge/internal/domain/models/brd"
)

// emptyReplyMessage is returned when the model produced no text at all.
const emptyReplyMessage = "I could not produce a response this time. Please try again."

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```$")

// Result is the structured reading of one model reply. DocumentUpdate is nil
// when the model proposed no change.
type Result struct {
	Message        string           `json:"message"`
	Suggestions    []brd.Suggestion `json:"suggestions"`
	DocumentUpdate *brd.Content     `json:"documentUpdate"`
}

// Parser decodes model replies. The zero value is not usable; use New.
type Parser struct {
	fallbackLimit int
}

// New returns a parser that caps fallback plain-text replies at
// fallbackLimit characters.
func New(fallbackLimit int) *Parser {
	return &Parser{fallbackLimit: fallbackLimit}
}

// Parse never fails: output that cannot be decoded becomes a plain-text
// reply with no suggestions and no document change.
func (p *Parser) Parse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Message: emptyReplyMessage, Suggestions: []brd.Suggestion{}}
	}

	body := StripFences(trimmed)
	if res, ok := decode(body); ok {
		return res
	}

	// Stray prose around the object
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		if res, ok := decode(body[start : end+1]); ok {
			return res
		}
	}

	return Result{
		Message:     capRunes(trimmed, p.fallbackLimit),
		Suggestions: []brd.Suggestion{},
	}
}

// StripFences removes a surrounding ``` or ```json code fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

type wireResult struct {
	Message        *string         `json:"message"`
	Suggestions    json.RawMessage `json:"suggestions"`
	DocumentUpdate json.RawMessage `json:"documentUpdate"`
	BRDUpdate      json.RawMessage `json:"brdUpdate"` // Older prompt wording
}

func decode(body string) (Result, bool) {
	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Result{}, false
	}
	if w.Message == nil {
		return Result{}, false
	}

	res := Result{Message: *w.Message, Suggestions: decodeSuggestions(w.Suggestions)}

	update := w.DocumentUpdate
	if len(update) == 0 {
		update = w.BRDUpdate
	}
	if len(update) > 0 {
		var content brd.Content
		if err := json.Unmarshal(update, &content); err == nil && !content.IsZero() {
			res.DocumentUpdate = &content
		}
	}

	return res, true
}

// decodeSuggestions reads the suggestions field item by item. A bare string
// is one suggestion; items that are neither strings nor objects, or that
// carry no text, are dropped.
func decodeSuggestions(raw json.RawMessage) []brd.Suggestion {
	out := []brd.Suggestion{}
	if len(raw) == 0 {
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
			out = append(out, brd.Suggestion{Text: text})
		}
		return out
	}

	for _, item := range items {
		var s brd.Suggestion
		if err := json.Unmarshal(item, &s); err != nil || strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func capRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
