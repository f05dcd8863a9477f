package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"reqforge/internal/config"
	brdSvc "reqforge/internal/domain/services/brd"
	"reqforge/internal/httputil"
)

// multipartOverhead leaves room for form boundaries and headers
const multipartOverhead = 1 << 20

// UploadHandler accepts source documents for a project
type UploadHandler struct {
	uploadService brdSvc.UploadService
	logger        *slog.Logger
}

func NewUploadHandler(uploadService brdSvc.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		logger:        logger,
	}
}

// CreateUploads stores every file of the "files" form field
// POST /api/projects/{id}/uploads (multipart/form-data)
func (h *UploadHandler) CreateUploads(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	userID := httputil.GetUserID(r)

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", config.MaxUploadSize))
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "No files provided")
		return
	}

	created := make([]any, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("failed to open file %s", fileHeader.Filename))
			return
		}

		upload, err := h.uploadService.CreateUpload(r.Context(), &brdSvc.CreateUploadRequest{
			ProjectID:    projectID,
			UserID:       userID,
			OriginalName: fileHeader.Filename,
			ContentType:  fileHeader.Header.Get("Content-Type"),
			Size:         fileHeader.Size,
			Body:         file,
		})
		_ = file.Close()
		if err != nil {
			h.logger.Warn("upload rejected",
				"project_id", projectID,
				"file", fileHeader.Filename,
				"error", err,
			)
			handleError(w, err)
			return
		}
		created = append(created, upload)
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// ListUploads returns a project's uploads
// GET /api/projects/{id}/uploads
func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.uploadService.ListUploads(r.Context(), r.PathValue("id"), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, uploads)
}

// DeleteUpload removes one upload
// DELETE /api/projects/{id}/uploads/{uploadId}
func (h *UploadHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	err := h.uploadService.DeleteUpload(r.Context(), r.PathValue("uploadId"), r.PathValue("id"), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
