package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reqforge/internal/handler"
)

type routes struct {
	health       *handler.HealthHandler
	projects     *handler.ProjectHandler
	documents    *handler.DocumentHandler
	uploads      *handler.UploadHandler
	conversation *handler.ConversationHandler
	realtime     *handler.RealtimeHandler
	metrics      prometheus.Gatherer
}

func newRouter(r routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", r.health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(r.metrics, promhttp.HandlerOpts{}))

	// Projects
	mux.HandleFunc("GET /api/projects", r.projects.ListProjects)
	mux.HandleFunc("POST /api/projects", r.projects.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", r.projects.GetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", r.projects.UpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", r.projects.DeleteProject)

	// Document
	mux.HandleFunc("POST /api/projects/{id}/generate", r.documents.GenerateDocument)
	mux.HandleFunc("GET /api/projects/{id}/document", r.documents.GetDocument)
	mux.HandleFunc("PUT /api/projects/{id}/document", r.documents.SaveDocument)
	mux.HandleFunc("GET /api/projects/{id}/document/export", r.documents.ExportDocument)
	mux.HandleFunc("PATCH /api/projects/{id}/document/conflicts/{conflictId}", r.documents.UpdateConflict)

	// Conversation history; new turns arrive over the socket
	mux.HandleFunc("GET /api/projects/{id}/turns", r.conversation.ListTurns)

	// Uploads
	mux.HandleFunc("GET /api/projects/{id}/uploads", r.uploads.ListUploads)
	mux.HandleFunc("POST /api/projects/{id}/uploads", r.uploads.CreateUploads)
	mux.HandleFunc("DELETE /api/projects/{id}/uploads/{uploadId}", r.uploads.DeleteUpload)

	mux.HandleFunc("GET /ws", r.realtime.ServeWS)

	return mux
}
