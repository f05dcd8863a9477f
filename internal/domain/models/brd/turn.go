package brd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one append-only message in a project's conversation.
type Turn struct {
	ID          string       `json:"id" db:"id"`
	ProjectID   string       `json:"project_id" db:"project_id"`
	Role        string       `json:"role" db:"role"`
	Content     string       `json:"content" db:"content"`
	Suggestions []Suggestion `json:"suggestions" db:"suggestions"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// Suggestion is a proposed BRD change emitted with an assistant turn. It has
// no identity of its own; accepting one resubmits its text as a message.
type Suggestion struct {
	Text     string
	Metadata map[string]any
}

// MarshalJSON flattens metadata next to "text".
func (s Suggestion) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		out[k] = v
	}
	out["text"] = s.Text
	return json.Marshal(out)
}

// UnmarshalJSON accepts either {"text": ..., ...} or a bare string.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Suggestion{Text: text}
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("suggestion must be a string or an object: %w", err)
	}

	text, _ := fields["text"].(string)
	delete(fields, "text")
	if len(fields) == 0 {
		fields = nil
	}
	*s = Suggestion{Text: text, Metadata: fields}
	return nil
}
