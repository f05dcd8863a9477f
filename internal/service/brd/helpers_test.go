package brd

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type broadcast struct {
	projectID string
	event     string
	payload   any
}

type roomRecorder struct {
	mu     sync.Mutex
	events []broadcast
}

func (r *roomRecorder) Broadcast(projectID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, broadcast{projectID, event, payload})
}

func (r *roomRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type stubGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(ctx context.Context, promptText, model string, maxAttempts int) (string, error) {
	g.prompt = promptText
	return g.reply, g.err
}
