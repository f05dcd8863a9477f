package brd

import (
	"context"
	"log/slog"

	"reqforge/internal/config"
	models "reqforge/internal/domain/models/brd"
	brdRepo "reqforge/internal/domain/repositories/brd"
	brdSvc "reqforge/internal/domain/services/brd"
)

type conversationService struct {
	projectRepo brdRepo.ProjectRepository
	turnRepo    brdRepo.TurnRepository
	logger      *slog.Logger
}

// NewConversationService creates the read side of the conversation log.
// Turns are written by the conversation orchestrator.
func NewConversationService(
	projectRepo brdRepo.ProjectRepository,
	turnRepo brdRepo.TurnRepository,
	logger *slog.Logger,
) brdSvc.ConversationService {
	return &conversationService{
		projectRepo: projectRepo,
		turnRepo:    turnRepo,
		logger:      logger,
	}
}

// ListTurns returns the newest turns in chronological order. A limit outside
// (0, MaxHistoryLimit] falls back to the default or the cap.
func (s *conversationService) ListTurns(ctx context.Context, projectID, userID string, limit int) ([]models.Turn, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID, userID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = config.DefaultHistoryLimit
	case limit > config.MaxHistoryLimit:
		limit = config.MaxHistoryLimit
	}

	turns, err := s.turnRepo.ListRecent(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}
