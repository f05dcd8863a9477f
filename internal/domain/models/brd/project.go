package brd

import (
	"time"
)

// TemplateType selects the structural contract applied to a project's BRD.
type TemplateType string

const (
	TemplateComprehensive TemplateType = "comprehensive"
	TemplateStandard      TemplateType = "standard"
	TemplateAgile         TemplateType = "agile"
)

// TemplateTypes lists the accepted template identifiers.
var TemplateTypes = []TemplateType{TemplateComprehensive, TemplateStandard, TemplateAgile}

func (t TemplateType) Valid() bool {
	for _, known := range TemplateTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ProjectStatus string

const (
	StatusDraft    ProjectStatus = "draft"
	StatusInReview ProjectStatus = "in_review"
	StatusApproved ProjectStatus = "approved"
	StatusArchived ProjectStatus = "archived"
)

var ProjectStatuses = []ProjectStatus{StatusDraft, StatusInReview, StatusApproved, StatusArchived}

func (s ProjectStatus) Valid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Project struct {
	ID           string        `json:"id" db:"id"`
	UserID       string        `json:"user_id" db:"user_id"`
	Name         string        `json:"name" db:"name"`
	Description  string        `json:"description" db:"description"`
	TemplateType TemplateType  `json:"template_type" db:"template_type"`
	Status       ProjectStatus `json:"status" db:"status"`
	Uploads      []Upload      `json:"uploads,omitempty"`  // Loaded on demand, not a column
	Progress     *Progress     `json:"progress,omitempty"` // Computed from the document
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Progress reports how many of the template's required sections the
// current document covers.
type Progress struct {
	CompletionPercentage int `json:"completion_percentage"`
	SectionsCompleted    int `json:"sections_completed"`
	TotalSections        int `json:"total_sections"`
}

// Upload is a source document attached to a project.
type Upload struct {
	ID            string    `json:"id" db:"id"`
	ProjectID     string    `json:"project_id" db:"project_id"`
	ObjectKey     string    `json:"-" db:"object_key"` // Blob storage key
	OriginalName  string    `json:"original_name" db:"original_name"`
	ContentType   string    `json:"content_type" db:"content_type"`
	Size          int64     `json:"size" db:"size"`
	ExtractedText *string   `json:"extracted_text,omitempty" db:"extracted_text"` // NULL when extraction failed
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
}
