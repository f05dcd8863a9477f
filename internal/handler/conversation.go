package handler

import (
	"log/slog"
	"net/http"

	"reqforge/internal/config"
	brdSvc "reqforge/internal/domain/services/brd"
	"reqforge/internal/httputil"
)

// ConversationHandler serves the conversation history. New turns arrive
// over the socket.
type ConversationHandler struct {
	conversationService brdSvc.ConversationService
	logger              *slog.Logger
}

func NewConversationHandler(conversationService brdSvc.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		logger:              logger,
	}
}

// ListTurns returns recent turns, oldest first
// GET /api/projects/{id}/turns?limit=N
func (h *ConversationHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", config.DefaultHistoryLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns, err := h.conversationService.ListTurns(r.Context(), r.PathValue("id"), httputil.GetUserID(r), limit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turns)
}
