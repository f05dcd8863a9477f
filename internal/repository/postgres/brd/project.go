package brd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdRepo "reqforge/internal/domain/repositories/brd"
	"reqforge/internal/repository/postgres"
)

const projectColumns = "id, user_id, name, description, template_type, status, created_at, updated_at, deleted_at"

// PostgresProjectRepository implements the ProjectRepository interface
type PostgresProjectRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(config *postgres.RepositoryConfig) brdRepo.ProjectRepository {
	return &PostgresProjectRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.TemplateType,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a project and fills in ID and timestamps
func (r *PostgresProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, name, description, template_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		project.UserID,
		project.Name,
		project.Description,
		project.TemplateType,
		project.Status,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if postgres.IsPgCheckViolation(err) {
			return fmt.Errorf("create project: %w", domain.ErrValidation)
		}
		return fmt.Errorf("create project: %w", err)
	}

	return nil
}

// GetByID retrieves a live project owned by userID
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id, userID string) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, projectColumns, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	project, err := scanProject(executor.QueryRow(ctx, query, id, userID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInput(err) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	return project, nil
}

// List retrieves all live projects for a user, ordered by updated_at DESC
func (r *PostgresProjectRepository) List(ctx context.Context, userID string) ([]models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, projectColumns, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// Update persists the editable fields and refreshes updated_at
func (r *PostgresProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $3, description = $4, template_type = $5, status = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING updated_at
	`, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.TemplateType,
		project.Status,
	).Scan(&project.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
		}
		if postgres.IsPgCheckViolation(err) {
			return fmt.Errorf("update project: %w", domain.ErrValidation)
		}
		return fmt.Errorf("update project: %w", err)
	}

	return nil
}

// UpdateStatus changes the lifecycle status of a live project
func (r *PostgresProjectRepository) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete soft-deletes a project and returns the deleted row
func (r *PostgresProjectRepository) Delete(ctx context.Context, id, userID string) (*models.Project, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING %s
	`, r.tables.Projects, projectColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	project, err := scanProject(executor.QueryRow(ctx, query, id, userID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInput(err) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delete project: %w", err)
	}

	return project, nil
}
