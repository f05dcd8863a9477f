package brd

import (
	"time"
)

type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
	ConflictIgnored  ConflictStatus = "ignored"
)

func (s ConflictStatus) Valid() bool {
	return s == ConflictOpen || s == ConflictResolved || s == ConflictIgnored
}

// Conflict records a contradiction found between requirement sources.
type Conflict struct {
	ID                string         `json:"id"`
	Type              string         `json:"type"`
	Description       string         `json:"description"`
	Status            ConflictStatus `json:"status"`
	ResolutionOptions []string       `json:"resolution_options,omitempty"`
}

// Document is the BRD of a project. There is at most one per project.
// Version starts at 1 and is incremented by every write.
type Document struct {
	ProjectID    string       `json:"project_id" db:"project_id"`
	TemplateType TemplateType `json:"template_type" db:"template_type"`
	Content      Content      `json:"content" db:"content"`
	Version      int64        `json:"version" db:"version"`
	Conflicts    []Conflict   `json:"conflicts" db:"conflicts"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
