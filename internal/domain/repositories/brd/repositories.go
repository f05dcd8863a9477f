package brd

import (
	"context"

	"reqforge/internal/domain/models/brd"
)

// ProjectRepository defines data access operations for projects
type ProjectRepository interface {
	// Create fills in ID and timestamps
	Create(ctx context.Context, project *brd.Project) error

	// GetByID retrieves a project owned by userID
	GetByID(ctx context.Context, id, userID string) (*brd.Project, error)

	// List retrieves all projects for a user, ordered by updated_at DESC
	List(ctx context.Context, userID string) ([]brd.Project, error)

	// Update persists name, description, template type and status
	Update(ctx context.Context, project *brd.Project) error

	// UpdateStatus changes only the lifecycle status
	UpdateStatus(ctx context.Context, id string, status brd.ProjectStatus) error

	// Delete soft-deletes a project by setting deleted_at
	Delete(ctx context.Context, id, userID string) (*brd.Project, error)
}

// DocumentRepository stores the single BRD of each project.
type DocumentRepository interface {
	// Get returns the project's document or domain.ErrNotFound
	Get(ctx context.Context, projectID string) (*brd.Document, error)

	// Upsert creates or replaces the document keyed by project ID and sets
	// doc.Version, CreatedAt and UpdatedAt from the stored row.
	// When expectedVersion is non-nil the write only succeeds if the stored
	// version equals it (0 meaning "no document yet"); otherwise a
	// *domain.VersionConflictError is returned.
	Upsert(ctx context.Context, doc *brd.Document, expectedVersion *int64) error

	// UpdateConflicts replaces the conflict list without touching content
	UpdateConflicts(ctx context.Context, projectID string, conflicts []brd.Conflict) error
}

// TurnRepository is the append-only conversation log.
type TurnRepository interface {
	// Append fills in ID and CreatedAt
	Append(ctx context.Context, turn *brd.Turn) error

	// ListRecent returns the newest `limit` turns in chronological order
	ListRecent(ctx context.Context, projectID string, limit int) ([]brd.Turn, error)
}

// UploadRepository stores uploaded source documents.
type UploadRepository interface {
	Create(ctx context.Context, upload *brd.Upload) error
	ListByProject(ctx context.Context, projectID string) ([]brd.Upload, error)
	Get(ctx context.Context, id, projectID string) (*brd.Upload, error)
	Delete(ctx context.Context, id, projectID string) error
}
