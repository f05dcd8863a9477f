// Package converter extracts text from uploaded source documents so it can
// be injected into prompts.
package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	brdSvc "reqforge/internal/domain/services/brd"
)

// ErrUnsupportedType is wrapped when no converter handles a file extension.
var ErrUnsupportedType = errors.New("unsupported file type")

// Registry routes files to converters by extension. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]brdSvc.ContentConverter // key: ".pdf"
}

// NewRegistry returns a registry with the text, markdown, HTML and PDF
// converters registered.
func NewRegistry() *Registry {
	r := &Registry{converters: make(map[string]brdSvc.ContentConverter)}
	r.Register(NewTextConverter())
	r.Register(NewMarkdownConverter())
	r.Register(NewHTMLConverter())
	r.Register(NewPDFConverter())
	return r
}

// Register maps every extension of c to c, replacing earlier entries.
func (r *Registry) Register(c brdSvc.ContentConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range c.SupportedExtensions() {
		r.converters[normalizeExt(ext)] = c
	}
}

func (r *Registry) lookup(filename string) brdSvc.ContentConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.converters[normalizeExt(filepath.Ext(filename))]
}

// Supports reports whether filename has a registered extension.
func (r *Registry) Supports(filename string) bool {
	return r.lookup(filename) != nil
}

// Convert extracts text from content using the converter for filename's
// extension.
func (r *Registry) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	c := r.lookup(filename)
	if c == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}

	text, err := c.Convert(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%s converter: %w", c.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

// SupportedExtensions returns the registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.converters))
	for ext := range r.converters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
