package services

import "context"

// ResourceAuthorizer checks if a user can access resources.
// Services and socket handlers call it before touching a project.
type ResourceAuthorizer interface {
	// CanAccessProject returns domain.ErrForbidden when userID does not own projectID
	CanAccessProject(ctx context.Context, userID, projectID string) error
}
