package brd

import (
	"context"
	"io"

	"reqforge/internal/domain/models/brd"
	"reqforge/internal/httputil"
)

// CreateProjectRequest represents a request to create a project
type CreateProjectRequest struct {
	UserID       string           `json:"-"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	TemplateType brd.TemplateType `json:"template_type"`
}

// UpdateProjectRequest uses PATCH semantics: absent fields are left alone.
type UpdateProjectRequest struct {
	Name         *string                 `json:"name"`
	Description  httputil.OptionalString `json:"description"`
	TemplateType *brd.TemplateType       `json:"template_type"`
	Status       *brd.ProjectStatus      `json:"status"`
}

// ProjectService defines business logic operations for projects
type ProjectService interface {
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*brd.Project, error)

	// GetProject returns the project with uploads and progress populated
	GetProject(ctx context.Context, id, userID string) (*brd.Project, error)

	ListProjects(ctx context.Context, userID string) ([]brd.Project, error)
	UpdateProject(ctx context.Context, id, userID string, req *UpdateProjectRequest) (*brd.Project, error)
	DeleteProject(ctx context.Context, id, userID string) (*brd.Project, error)
}

// SaveDocumentRequest is a manual edit of the BRD.
type SaveDocumentRequest struct {
	Content brd.Content `json:"content"`
	Version *int64      `json:"version,omitempty"` // Optimistic check when present
}

// DocumentService covers BRD generation, manual edits and export.
type DocumentService interface {
	GetDocument(ctx context.Context, projectID, userID string) (*brd.Document, error)

	// GenerateDocument builds a full BRD from the project brief and uploads,
	// stores it, moves the project to in_review and notifies the room.
	GenerateDocument(ctx context.Context, projectID, userID string) (*brd.Document, error)

	SaveDocument(ctx context.Context, projectID, userID string, req *SaveDocumentRequest) (*brd.Document, error)

	// ExportMarkdown renders the current document as Markdown
	ExportMarkdown(ctx context.Context, projectID, userID string) (string, error)

	UpdateConflictStatus(ctx context.Context, projectID, userID, conflictID string, status brd.ConflictStatus) (*brd.Document, error)
}

// CreateUploadRequest carries one uploaded file.
type CreateUploadRequest struct {
	ProjectID    string
	UserID       string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// UploadService stores source files and their extracted text.
type UploadService interface {
	CreateUpload(ctx context.Context, req *CreateUploadRequest) (*brd.Upload, error)
	ListUploads(ctx context.Context, projectID, userID string) ([]brd.Upload, error)
	DeleteUpload(ctx context.Context, id, projectID, userID string) error
}

// ConversationService reads the conversation history.
type ConversationService interface {
	ListTurns(ctx context.Context, projectID, userID string, limit int) ([]brd.Turn, error)
}

// WebScraper fetches a page and returns its readable text.
type WebScraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// ContentConverter extracts prompt-ready text from an uploaded file.
// Implementations are stateless and safe for concurrent use.
type ContentConverter interface {
	Convert(ctx context.Context, input []byte) (string, error)

	// SupportedExtensions includes the leading dot, e.g. ".pdf"
	SupportedExtensions() []string

	Name() string
}

// RoomBroadcaster delivers an event to every connection in a project room.
type RoomBroadcaster interface {
	Broadcast(projectID, event string, payload any)
}
