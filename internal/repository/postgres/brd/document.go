package brd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdRepo "reqforge/internal/domain/repositories/brd"
	"reqforge/internal/repository/postgres"
)

// PostgresDocumentRepository stores one BRD row per project. The body is
// split into content_kind and a JSONB value: a string for Markdown, an
// object for structured content.
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) brdRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Get returns the project's document
func (r *PostgresDocumentRepository) Get(ctx context.Context, projectID string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT project_id, template_type, content_kind, content, version, conflicts, created_at, updated_at
		FROM %s
		WHERE project_id = $1
	`, r.tables.Documents)

	var (
		doc       models.Document
		kind      models.ContentKind
		content   []byte
		conflicts []byte
	)
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, projectID).Scan(
		&doc.ProjectID,
		&doc.TemplateType,
		&kind,
		&content,
		&doc.Version,
		&conflicts,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInput(err) {
			return nil, fmt.Errorf("document for project %s: %w", projectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	if doc.Content, err = decodeContent(kind, content); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", projectID, err)
	}
	if err := json.Unmarshal(conflicts, &doc.Conflicts); err != nil {
		return nil, fmt.Errorf("decode conflicts %s: %w", projectID, err)
	}

	return &doc, nil
}

// Upsert writes the document. See brdRepo.DocumentRepository for the
// expectedVersion contract.
func (r *PostgresDocumentRepository) Upsert(ctx context.Context, doc *models.Document, expectedVersion *int64) error {
	content, err := encodeContent(doc.Content)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	conflicts, err := encodeConflicts(doc.Conflicts)
	if err != nil {
		return fmt.Errorf("encode conflicts: %w", err)
	}

	args := []any{doc.ProjectID, doc.TemplateType, doc.Content.Kind, content, conflicts}
	var query string

	switch {
	case expectedVersion == nil:
		query = fmt.Sprintf(`
			INSERT INTO %[1]s (project_id, template_type, content_kind, content, conflicts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (project_id) DO UPDATE
			SET template_type = EXCLUDED.template_type,
			    content_kind  = EXCLUDED.content_kind,
			    content       = EXCLUDED.content,
			    conflicts     = EXCLUDED.conflicts,
			    version       = %[1]s.version + 1,
			    updated_at    = now()
			RETURNING version, created_at, updated_at
		`, r.tables.Documents)
	case *expectedVersion == 0:
		query = fmt.Sprintf(`
			INSERT INTO %s (project_id, template_type, content_kind, content, conflicts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (project_id) DO NOTHING
			RETURNING version, created_at, updated_at
		`, r.tables.Documents)
	default:
		query = fmt.Sprintf(`
			UPDATE %s
			SET template_type = $2, content_kind = $3, content = $4, conflicts = $5,
			    version = version + 1, updated_at = now()
			WHERE project_id = $1 AND version = $6
			RETURNING version, created_at, updated_at
		`, r.tables.Documents)
		args = append(args, *expectedVersion)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query, args...).Scan(&doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err == nil {
		return nil
	}
	if postgres.IsPgForeignKeyError(err) {
		return fmt.Errorf("project %s: %w", doc.ProjectID, domain.ErrNotFound)
	}
	if !postgres.IsPgNoRowsError(err) || expectedVersion == nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	// The conditional write matched nothing: report what is stored now
	actual, verr := r.currentVersion(ctx, doc.ProjectID)
	if verr != nil {
		return fmt.Errorf("read document version: %w", verr)
	}
	return &domain.VersionConflictError{
		ProjectID: doc.ProjectID,
		Expected:  *expectedVersion,
		Actual:    actual,
	}
}

// UpdateConflicts replaces the conflict list without bumping the version
func (r *PostgresDocumentRepository) UpdateConflicts(ctx context.Context, projectID string, conflicts []models.Conflict) error {
	encoded, err := encodeConflicts(conflicts)
	if err != nil {
		return fmt.Errorf("encode conflicts: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET conflicts = $2, updated_at = now()
		WHERE project_id = $1
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, projectID, encoded)
	if err != nil {
		return fmt.Errorf("update conflicts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document for project %s: %w", projectID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresDocumentRepository) currentVersion(ctx context.Context, projectID string) (int64, error) {
	query := fmt.Sprintf(`SELECT version FROM %s WHERE project_id = $1`, r.tables.Documents)

	var version int64
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, projectID).Scan(&version)
	if postgres.IsPgNoRowsError(err) {
		return 0, nil
	}
	return version, err
}

func encodeContent(c models.Content) ([]byte, error) {
	switch c.Kind {
	case models.ContentMarkdown:
		return json.Marshal(c.Markdown)
	case models.ContentStructured:
		return json.Marshal(c.Sections)
	default:
		return nil, fmt.Errorf("unknown content kind %q", c.Kind)
	}
}

func decodeContent(kind models.ContentKind, raw []byte) (models.Content, error) {
	switch kind {
	case models.ContentMarkdown:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return models.Content{}, err
		}
		return models.MarkdownContent(text), nil
	case models.ContentStructured:
		var sections map[string]any
		if err := json.Unmarshal(raw, &sections); err != nil {
			return models.Content{}, err
		}
		return models.StructuredContent(sections), nil
	default:
		return models.Content{}, fmt.Errorf("unknown content kind %q", kind)
	}
}

func encodeConflicts(conflicts []models.Conflict) ([]byte, error) {
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return json.Marshal(conflicts)
}
