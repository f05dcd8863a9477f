package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	models "reqforge/internal/domain/models/brd"
	"reqforge/internal/domain/services"
	"reqforge/internal/httputil"
	"reqforge/internal/realtime"
	"reqforge/internal/service/brd/conversation"
)

const (
	msgAccessDenied  = "Project not found or access denied."
	msgBadEvent      = "Malformed event payload."
	msgUnknownEvent  = "Unknown event."
	msgInternalError = "Something went wrong while handling your message."
)

// Turner runs chat turns. Implemented by *conversation.Orchestrator.
type Turner interface {
	HandleMessage(ctx context.Context, requester conversation.Requester, req conversation.TurnRequest) error
	AcceptSuggestion(ctx context.Context, requester conversation.Requester, projectID, userID, suggestion string) error
}

// RealtimeHandler upgrades authenticated requests to WebSockets and routes
// their events. Every chat event runs on its own goroutine.
type RealtimeHandler struct {
	hub         *realtime.Hub
	turns       Turner
	authorizer  services.ResourceAuthorizer
	upgrader    websocket.Upgrader
	turnTimeout time.Duration
	inflight    sync.WaitGroup
	logger      *slog.Logger
}

// NewRealtimeHandler allows any origin when allowedOrigins is empty or
// contains "*".
func NewRealtimeHandler(
	hub *realtime.Hub,
	turns Turner,
	authorizer services.ResourceAuthorizer,
	allowedOrigins []string,
	turnTimeout time.Duration,
	logger *slog.Logger,
) *RealtimeHandler {
	anyOrigin := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &RealtimeHandler{
		hub:        hub,
		turns:      turns,
		authorizer: authorizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		turnTimeout: turnTimeout,
		logger:      logger,
	}
}

// ServeWS handles GET /ws
func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := realtime.NewClient(conn, userID, h.logger)
	go client.WritePump()

	// Turns outlive the socket so a reply is still persisted after a disconnect
	base := context.WithoutCancel(r.Context())

	h.logger.Debug("websocket connected", "conn_id", client.ID(), "user_id", userID)
	client.ReadPump(func(f realtime.Frame) { h.dispatch(base, client, f) })
	h.hub.Disconnect(client)
	h.logger.Debug("websocket disconnected", "conn_id", client.ID(), "user_id", userID)
}

func (h *RealtimeHandler) dispatch(ctx context.Context, client *realtime.Client, frame realtime.Frame) {
	switch frame.Event {
	case models.EventJoinProject:
		var p models.RoomPayload
		if !h.decode(client, frame, &p) {
			return
		}
		if err := h.authorizer.CanAccessProject(ctx, client.UserID(), p.ProjectID); err != nil {
			h.logger.Info("join denied", "project_id", p.ProjectID, "user_id", client.UserID(), "error", err)
			h.reply(client, models.EventError, models.ErrorPayload{Message: msgAccessDenied})
			return
		}
		h.hub.Join(p.ProjectID, client)
		h.reply(client, models.EventJoined, p)

	case models.EventLeaveProject:
		var p models.RoomPayload
		if !h.decode(client, frame, &p) {
			return
		}
		h.hub.Leave(p.ProjectID, client)
		h.reply(client, models.EventLeft, p)

	case models.EventChatMessage:
		var p models.ChatMessagePayload
		if !h.decode(client, frame, &p) {
			return
		}
		req := conversation.TurnRequest{
			ProjectID: p.ProjectID,
			UserID:    client.UserID(),
			Message:   p.Message,
			Timestamp: parseTimestamp(p.Timestamp),
		}
		h.runTurn(ctx, client, func(ctx context.Context) error {
			return h.turns.HandleMessage(ctx, client, req)
		})

	case models.EventAcceptSuggestion:
		var p models.AcceptSuggestionPayload
		if !h.decode(client, frame, &p) {
			return
		}
		h.runTurn(ctx, client, func(ctx context.Context) error {
			return h.turns.AcceptSuggestion(ctx, client, p.ProjectID, client.UserID(), p.Suggestion.Text)
		})

	default:
		h.reply(client, models.EventError, models.ErrorPayload{Message: msgUnknownEvent})
	}
}

// runTurn starts fn on its own goroutine. Panics are contained to the turn.
func (h *RealtimeHandler) runTurn(ctx context.Context, client *realtime.Client, fn func(context.Context) error) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("chat turn panicked",
					"conn_id", client.ID(),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				h.reply(client, models.EventError, models.ErrorPayload{Message: msgInternalError})
			}
		}()

		if h.turnTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			h.logger.Debug("chat turn failed", "conn_id", client.ID(), "error", err)
		}
	}()
}

// Wait blocks until in-flight turns finish or ctx ends.
func (h *RealtimeHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *RealtimeHandler) decode(client *realtime.Client, frame realtime.Frame, dest any) bool {
	if len(frame.Data) == 0 {
		h.reply(client, models.EventError, models.ErrorPayload{Message: msgBadEvent})
		return false
	}
	if err := json.Unmarshal(frame.Data, dest); err != nil {
		h.reply(client, models.EventError, models.ErrorPayload{Message: msgBadEvent})
		return false
	}
	return true
}

func (h *RealtimeHandler) reply(client *realtime.Client, event string, payload any) {
	if err := client.Send(event, payload); err != nil {
		h.logger.Debug("failed to reply on websocket", "conn_id", client.ID(), "event", event, "error", err)
	}
}

func parseTimestamp(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Now()
}
