package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that know their HTTP status.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors, matched with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUnavailable  = errors.New("service unavailable")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string
	ResourceType string // project, document, upload
	ResourceID   string
}

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// VersionConflictError is returned when a document write carried a version
// that is no longer current.
type VersionConflictError struct {
	ProjectID string
	Expected  int64
	Actual    int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("document for project %s changed concurrently (expected version %d, found %d)",
		e.ProjectID, e.Expected, e.Actual)
}

func (e *VersionConflictError) StatusCode() int { return http.StatusConflict }

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrConflict
}

// PersistenceError marks a storage failure that happened after the model
// produced a reply. The user turn written before it is not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
