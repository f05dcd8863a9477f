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

// PostgresTurnRepository is the append-only conversation log. Turns are
// ordered by an identity column so equal timestamps keep insertion order.
type PostgresTurnRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

func NewTurnRepository(config *postgres.RepositoryConfig) brdRepo.TurnRepository {
	return &PostgresTurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func (r *PostgresTurnRepository) Append(ctx context.Context, turn *models.Turn) error {
	suggestions := turn.Suggestions
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (project_id, role, content, suggestions)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query, turn.ProjectID, turn.Role, turn.Content, encoded).
		Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("project %s: %w", turn.ProjectID, domain.ErrNotFound)
		}
		return fmt.Errorf("append turn: %w", err)
	}

	return nil
}

// ListRecent returns the newest limit turns, oldest first
func (r *PostgresTurnRepository) ListRecent(ctx context.Context, projectID string, limit int) ([]models.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, role, content, suggestions, created_at
		FROM (
			SELECT seq, id, project_id, role, content, suggestions, created_at
			FROM %s
			WHERE project_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		var (
			t   models.Turn
			raw []byte
		)
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Role, &t.Content, &raw, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal(raw, &t.Suggestions); err != nil {
			return nil, fmt.Errorf("decode suggestions of turn %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}
