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

const uploadColumns = "id, project_id, object_key, original_name, content_type, size, extracted_text, uploaded_at"

type PostgresUploadRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

func NewUploadRepository(config *postgres.RepositoryConfig) brdRepo.UploadRepository {
	return &PostgresUploadRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var u models.Upload
	err := row.Scan(
		&u.ID,
		&u.ProjectID,
		&u.ObjectKey,
		&u.OriginalName,
		&u.ContentType,
		&u.Size,
		&u.ExtractedText,
		&u.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (project_id, object_key, original_name, content_type, size, extracted_text)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_at
	`, r.tables.Uploads)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		upload.ProjectID,
		upload.ObjectKey,
		upload.OriginalName,
		upload.ContentType,
		upload.Size,
		upload.ExtractedText,
	).Scan(&upload.ID, &upload.UploadedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("project %s: %w", upload.ProjectID, domain.ErrNotFound)
		}
		return fmt.Errorf("create upload: %w", err)
	}

	return nil
}

// ListByProject returns uploads in upload order
func (r *PostgresUploadRepository) ListByProject(ctx context.Context, projectID string) ([]models.Upload, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE project_id = $1
		ORDER BY uploaded_at ASC, id ASC
	`, uploadColumns, r.tables.Uploads)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []models.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}

	return uploads, nil
}

func (r *PostgresUploadRepository) Get(ctx context.Context, id, projectID string) (*models.Upload, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND project_id = $2
	`, uploadColumns, r.tables.Uploads)

	executor := postgres.GetExecutor(ctx, r.pool)
	u, err := scanUpload(executor.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInput(err) {
			return nil, fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}

	return u, nil
}

func (r *PostgresUploadRepository) Delete(ctx context.Context, id, projectID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND project_id = $2`, r.tables.Uploads)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, projectID)
	if err != nil {
		if postgres.IsPgInvalidInput(err) {
			return fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
