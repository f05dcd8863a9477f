package brd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"reqforge/internal/config"
	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdRepo "reqforge/internal/domain/repositories/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	"reqforge/internal/storage"
)

// TextExtractor turns an uploaded file into prompt text, chosen by filename.
type TextExtractor interface {
	Supports(filename string) bool
	Convert(ctx context.Context, filename string, content []byte) (string, error)
}

// uploadService implements the UploadService interface
type uploadService struct {
	projectRepo brdRepo.ProjectRepository
	uploadRepo  brdRepo.UploadRepository
	extractor   TextExtractor
	store       storage.Storage
	logger      *slog.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(
	projectRepo brdRepo.ProjectRepository,
	uploadRepo brdRepo.UploadRepository,
	extractor TextExtractor,
	store storage.Storage,
	logger *slog.Logger,
) brdSvc.UploadService {
	return &uploadService{
		projectRepo: projectRepo,
		uploadRepo:  uploadRepo,
		extractor:   extractor,
		store:       store,
		logger:      logger,
	}
}

// CreateUpload stores the file bytes and records the extracted text. A file
// whose text cannot be extracted is still kept, with no text.
func (s *uploadService) CreateUpload(ctx context.Context, req *brdSvc.CreateUploadRequest) (*models.Upload, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.projectRepo.GetByID(ctx, req.ProjectID, req.UserID); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(io.LimitReader(req.Body, config.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(content) > config.MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, config.MaxUploadSize)
	}

	name := filepath.Base(req.OriginalName)
	upload := &models.Upload{
		ProjectID:    req.ProjectID,
		OriginalName: name,
		ContentType:  req.ContentType,
		Size:         int64(len(content)),
	}

	text, err := s.extractor.Convert(ctx, name, content)
	if err != nil {
		s.logger.Warn("text extraction failed, keeping upload without text",
			"project_id", req.ProjectID,
			"file", name,
			"error", err,
		)
	} else if text != "" {
		upload.ExtractedText = &text
	}

	key := storage.ObjectKey(req.ProjectID, uuid.NewString(), name)
	info, err := s.store.Put(ctx, key, bytes.NewReader(content), storage.PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: req.ContentType,
		Metadata:    map[string]string{"original-name": name},
	})
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	upload.ObjectKey = info.Key

	if err := s.uploadRepo.Create(ctx, upload); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned object", "key", key, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("upload created",
		"id", upload.ID,
		"project_id", upload.ProjectID,
		"file", upload.OriginalName,
		"size", upload.Size,
		"extracted", upload.ExtractedText != nil,
	)

	return upload, nil
}

// ListUploads returns a project's uploads in upload order
func (s *uploadService) ListUploads(ctx context.Context, projectID, userID string) ([]models.Upload, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.uploadRepo.ListByProject(ctx, projectID)
}

// DeleteUpload removes the record and then the stored object
func (s *uploadService) DeleteUpload(ctx context.Context, id, projectID, userID string) error {
	if _, err := s.projectRepo.GetByID(ctx, projectID, userID); err != nil {
		return err
	}

	upload, err := s.uploadRepo.Get(ctx, id, projectID)
	if err != nil {
		return err
	}

	if err := s.uploadRepo.Delete(ctx, id, projectID); err != nil {
		return err
	}

	if upload.ObjectKey != "" {
		if err := s.store.Delete(ctx, upload.ObjectKey); err != nil {
			s.logger.Warn("failed to delete stored object", "key", upload.ObjectKey, "error", err)
		}
	}

	s.logger.Info("upload deleted",
		"id", id,
		"project_id", projectID,
		"user_id", userID,
	)

	return nil
}

func (s *uploadService) validateCreateRequest(req *brdSvc.CreateUploadRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.OriginalName,
			validation.Required,
			validation.By(func(value interface{}) error {
				name, _ := value.(string)
				if !s.extractor.Supports(name) {
					return fmt.Errorf("unsupported file type %q", strings.ToLower(filepath.Ext(name)))
				}
				return nil
			}),
		),
		validation.Field(&req.Size, validation.Max(int64(config.MaxUploadSize))),
		validation.Field(&req.Body, validation.NotNil),
	)
}
