package auth

import (
	"context"
	"errors"
	"fmt"

	"reqforge/internal/domain"
	brdRepo "reqforge/internal/domain/repositories/brd"
)

// OwnerBasedAuthorizer grants access to a project, its document, uploads and
// conversation when the user owns the project. Soft-deleted projects are
// treated as absent.
type OwnerBasedAuthorizer struct {
	projectRepo brdRepo.ProjectRepository
}

func NewOwnerBasedAuthorizer(projectRepo brdRepo.ProjectRepository) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{projectRepo: projectRepo}
}

// CanAccessProject returns domain.ErrForbidden when the project does not
// exist for userID.
func (a *OwnerBasedAuthorizer) CanAccessProject(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		return fmt.Errorf("no user on request: %w", domain.ErrUnauthorized)
	}

	// GetByID is scoped by owner
	_, err := a.projectRepo.GetByID(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
		}
		return fmt.Errorf("check project access: %w", err)
	}
	return nil
}
