package brd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reqforge/internal/config"
	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdRepo "reqforge/internal/domain/repositories/brd"
	brdSvc "reqforge/internal/domain/services/brd"
)

// ProgressSource computes section coverage of a document for a template.
type ProgressSource interface {
	Progress(id models.TemplateType, content models.Content) models.Progress
}

// projectService implements the ProjectService interface
type projectService struct {
	projectRepo  brdRepo.ProjectRepository
	documentRepo brdRepo.DocumentRepository
	uploadRepo   brdRepo.UploadRepository
	progress     ProgressSource
	logger       *slog.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projectRepo brdRepo.ProjectRepository,
	documentRepo brdRepo.DocumentRepository,
	uploadRepo brdRepo.UploadRepository,
	progress ProgressSource,
	logger *slog.Logger,
) brdSvc.ProjectService {
	return &projectService{
		projectRepo:  projectRepo,
		documentRepo: documentRepo,
		uploadRepo:   uploadRepo,
		progress:     progress,
		logger:       logger,
	}
}

// CreateProject creates a new project in draft status
func (s *projectService) CreateProject(ctx context.Context, req *brdSvc.CreateProjectRequest) (*models.Project, error) {
	if req.TemplateType == "" {
		req.TemplateType = models.TemplateComprehensive
	}
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	project := &models.Project{
		UserID:       req.UserID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		TemplateType: req.TemplateType,
		Status:       models.StatusDraft,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"id", project.ID,
		"name", project.Name,
		"template", project.TemplateType,
		"user_id", req.UserID,
	)

	return project, nil
}

// GetProject retrieves a project with its uploads and document progress
func (s *projectService) GetProject(ctx context.Context, id, userID string) (*models.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	uploads, err := s.uploadRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	project.Uploads = uploads

	doc, err := s.documentRepo.Get(ctx, project.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		project.Progress = &models.Progress{}
	case err != nil:
		return nil, fmt.Errorf("get document: %w", err)
	default:
		p := s.progress.Progress(project.TemplateType, doc.Content)
		project.Progress = &p
	}

	return project, nil
}

// ListProjects retrieves all projects for a user
func (s *projectService) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	projects, err := s.projectRepo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// UpdateProject applies the fields present in req
func (s *projectService) UpdateProject(ctx context.Context, id, userID string, req *brdSvc.UpdateProjectRequest) (*models.Project, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	project, err := s.projectRepo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description.Present {
		project.Description = ""
		if req.Description.Value != nil {
			project.Description = strings.TrimSpace(*req.Description.Value)
		}
	}
	if req.TemplateType != nil {
		project.TemplateType = *req.TemplateType
	}
	if req.Status != nil {
		project.Status = *req.Status
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project updated",
		"id", project.ID,
		"status", project.Status,
		"user_id", userID,
	)

	return project, nil
}

// DeleteProject soft-deletes a project and returns it with deleted_at set
func (s *projectService) DeleteProject(ctx context.Context, id, userID string) (*models.Project, error) {
	project, err := s.projectRepo.Delete(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("project deleted",
		"id", id,
		"user_id", userID,
	)

	return project, nil
}

func (s *projectService) validateCreateRequest(req *brdSvc.CreateProjectRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.RuneLength(1, config.MaxProjectNameLength),
			validation.By(validateProjectName),
		),
		validation.Field(&req.Description, validation.RuneLength(0, config.MaxProjectDescriptionLength)),
		validation.Field(&req.TemplateType, validation.In(templateChoices()...)),
	)
}

func (s *projectService) validateUpdateRequest(req *brdSvc.UpdateProjectRequest) error {
	var description *string
	if req.Description.Present {
		description = req.Description.Value
	}
	return validation.Errors{
		"name": validation.Validate(req.Name,
			validation.NilOrNotEmpty,
			validation.RuneLength(1, config.MaxProjectNameLength),
			validation.By(validateProjectName),
		),
		"description":   validation.Validate(description, validation.RuneLength(0, config.MaxProjectDescriptionLength)),
		"template_type": validation.Validate(req.TemplateType, validation.In(templateChoices()...)),
		"status":        validation.Validate(req.Status, validation.In(statusChoices()...)),
	}.Filter()
}

// validateProjectName rejects names that are blank after trimming. Accepts
// a string or a *string; a nil pointer is left to the other rules.
func validateProjectName(value interface{}) error {
	var name string
	switch v := value.(type) {
	case string:
		name = v
	case *string:
		if v == nil {
			return nil
		}
		name = *v
	default:
		return fmt.Errorf("name must be a string")
	}

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

func templateChoices() []interface{} {
	out := make([]interface{}, len(models.TemplateTypes))
	for i, t := range models.TemplateTypes {
		out[i] = t
	}
	return out
}

func statusChoices() []interface{} {
	out := make([]interface{}, len(models.ProjectStatuses))
	for i, s := range models.ProjectStatuses {
		out[i] = s
	}
	return out
}
