package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	models "reqforge/internal/domain/models/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	"reqforge/internal/httputil"
)

// DocumentHandler serves the BRD of a project
type DocumentHandler struct {
	docService     brdSvc.DocumentService
	projectService brdSvc.ProjectService
	logger         *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService brdSvc.DocumentService, projectService brdSvc.ProjectService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService:     docService,
		projectService: projectService,
		logger:         logger,
	}
}

// GetDocument returns the current BRD
// GET /api/projects/{id}/document
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docService.GetDocument(r.Context(), r.PathValue("id"), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// GenerateDocument drafts a full BRD from the brief and uploads
// POST /api/projects/{id}/generate
func (h *DocumentHandler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	doc, err := h.docService.GenerateDocument(r.Context(), projectID, httputil.GetUserID(r))
	if err != nil {
		h.logger.Warn("document generation failed", "project_id", projectID, "error", err)
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// SaveDocument stores a manual edit
// PUT /api/projects/{id}/document
//
// Body: {"content": "<markdown>" | {...sections} | {"kind": ..., ...}, "version": 3}
func (h *DocumentHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req brdSvc.SaveDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleParseError(w, err)
		return
	}

	doc, err := h.docService.SaveDocument(r.Context(), r.PathValue("id"), httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExportDocument downloads the BRD as Markdown
// GET /api/projects/{id}/document/export?format=md
func (h *DocumentHandler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	if format := r.URL.Query().Get("format"); format != "" && format != "md" && format != "markdown" {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", format))
		return
	}

	projectID, userID := r.PathValue("id"), httputil.GetUserID(r)
	markdown, err := h.docService.ExportMarkdown(r.Context(), projectID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	name := "brd"
	if project, err := h.projectService.GetProject(r.Context(), projectID, userID); err == nil {
		if cleaned := unsafeFilename.ReplaceAllString(project.Name, "_"); cleaned != "" {
			name = cleaned
		}
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, name))
	httputil.RespondText(w, http.StatusOK, "text/markdown; charset=utf-8", markdown)
}

type conflictStatusRequest struct {
	Status models.ConflictStatus `json:"status"`
}

// UpdateConflict triages one detected conflict
// PATCH /api/projects/{id}/document/conflicts/{conflictId}
func (h *DocumentHandler) UpdateConflict(w http.ResponseWriter, r *http.Request) {
	var req conflictStatusRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleParseError(w, err)
		return
	}

	doc, err := h.docService.UpdateConflictStatus(r.Context(),
		r.PathValue("id"),
		httputil.GetUserID(r),
		r.PathValue("conflictId"),
		req.Status,
	)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}
