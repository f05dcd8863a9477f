package brd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	"reqforge/internal/domain/repositories"
	brdRepo "reqforge/internal/domain/repositories/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/service/brd/parser"
	"reqforge/internal/service/brd/prompt"
)

// generateInstruction is the user message of a full generation request.
const generateInstruction = "Generate a complete Business Requirements Document for this project " +
	"from the project description and the uploaded documents. Follow the required sections exactly " +
	"and return the full document in documentUpdate."

// InstructionSource yields template-specific section instructions.
type InstructionSource interface {
	InstructionsFor(id models.TemplateType) string
}

// DocumentDeps are the collaborators of the document service.
type DocumentDeps struct {
	Projects  brdRepo.ProjectRepository
	Documents brdRepo.DocumentRepository
	Uploads   brdRepo.UploadRepository
	Tx        repositories.TransactionManager

	Templates InstructionSource
	Assembler *prompt.Assembler
	Generator domainllm.Generator
	Parser    *parser.Parser
	Rooms     brdSvc.RoomBroadcaster

	Model       string
	MaxAttempts int
	Logger      *slog.Logger
}

// documentService implements the DocumentService interface
type documentService struct {
	DocumentDeps
}

// NewDocumentService creates a new document service
func NewDocumentService(deps DocumentDeps) brdSvc.DocumentService {
	return &documentService{DocumentDeps: deps}
}

// GetDocument returns the project's BRD
func (s *documentService) GetDocument(ctx context.Context, projectID, userID string) (*models.Document, error) {
	if _, err := s.Projects.GetByID(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.Documents.Get(ctx, projectID)
}

// GenerateDocument runs the full-document prompt through the generation
// pipeline and replaces the stored BRD with the result.
func (s *documentService) GenerateDocument(ctx context.Context, projectID, userID string) (*models.Document, error) {
	project, err := s.Projects.GetByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	prior, err := s.Documents.Get(ctx, projectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err != nil {
		prior = nil
	}

	uploads, err := s.Uploads.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	promptText := s.Assembler.Assemble(prompt.Input{
		Project:              project,
		Document:             prior,
		Uploads:              uploads,
		Message:              generateInstruction,
		TemplateInstructions: s.Templates.InstructionsFor(project.TemplateType),
	})

	raw, err := s.Generator.Generate(ctx, promptText, s.Model, s.MaxAttempts)
	if err != nil {
		if errors.Is(err, domainllm.ErrNoCredentials) {
			return nil, fmt.Errorf("%w: generation is not configured", domain.ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	result := s.Parser.Parse(raw)
	if result.DocumentUpdate == nil {
		s.Logger.Warn("generation returned no document",
			"project_id", projectID,
			"reply", result.Message,
		)
		return nil, fmt.Errorf("%w: the model did not return a document", domain.ErrUnavailable)
	}

	doc := &models.Document{
		ProjectID:    projectID,
		TemplateType: project.TemplateType,
		Content:      *result.DocumentUpdate,
		Conflicts:    s.conflictsFor(*result.DocumentUpdate, prior),
	}

	err = s.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.Documents.Upsert(ctx, doc, nil); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		return s.Projects.UpdateStatus(ctx, projectID, models.StatusInReview)
	})
	if err != nil {
		return nil, err
	}

	s.Rooms.Broadcast(projectID, models.EventDocumentUpdated, models.DocumentUpdatedPayload{Document: doc})

	s.Logger.Info("document generated",
		"project_id", projectID,
		"version", doc.Version,
		"conflicts", len(doc.Conflicts),
		"user_id", userID,
	)

	return doc, nil
}

// SaveDocument stores a manual edit. A version in req makes the write
// conditional on the stored version.
func (s *documentService) SaveDocument(ctx context.Context, projectID, userID string, req *brdSvc.SaveDocumentRequest) (*models.Document, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Content, validation.By(nonEmptyContent)),
		validation.Field(&req.Version, validation.Min(int64(0))),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	project, err := s.Projects.GetByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	prior, err := s.Documents.Get(ctx, projectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err != nil {
		prior = nil
	}

	doc := &models.Document{
		ProjectID:    projectID,
		TemplateType: project.TemplateType,
		Content:      req.Content,
		Conflicts:    s.conflictsFor(req.Content, prior),
	}
	if err := s.Documents.Upsert(ctx, doc, req.Version); err != nil {
		return nil, err
	}

	s.Rooms.Broadcast(projectID, models.EventDocumentUpdated, models.DocumentUpdatedPayload{Document: doc})

	s.Logger.Info("document saved",
		"project_id", projectID,
		"version", doc.Version,
		"user_id", userID,
	)

	return doc, nil
}

// ExportMarkdown renders the stored BRD as Markdown
func (s *documentService) ExportMarkdown(ctx context.Context, projectID, userID string) (string, error) {
	doc, err := s.GetDocument(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	return doc.Content.Render(), nil
}

// UpdateConflictStatus triages one detected conflict
func (s *documentService) UpdateConflictStatus(ctx context.Context, projectID, userID, conflictID string, status models.ConflictStatus) (*models.Document, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status must be one of open, resolved, ignored", domain.ErrValidation)
	}

	doc, err := s.GetDocument(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range doc.Conflicts {
		if doc.Conflicts[i].ID == conflictID {
			doc.Conflicts[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("conflict %s: %w", conflictID, domain.ErrNotFound)
	}

	if err := s.Documents.UpdateConflicts(ctx, projectID, doc.Conflicts); err != nil {
		return nil, err
	}

	s.Rooms.Broadcast(projectID, models.EventDocumentUpdated, models.DocumentUpdatedPayload{Document: doc})

	s.Logger.Info("conflict status updated",
		"project_id", projectID,
		"conflict_id", conflictID,
		"status", status,
		"user_id", userID,
	)

	return doc, nil
}

func (s *documentService) conflictsFor(content models.Content, prior *models.Document) []models.Conflict {
	var previous []models.Conflict
	if prior != nil {
		previous = prior.Conflicts
	}
	return RefreshConflicts(content, previous)
}

func nonEmptyContent(value interface{}) error {
	c, ok := value.(models.Content)
	if !ok {
		return fmt.Errorf("content must be a document body")
	}
	if c.IsZero() {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}
