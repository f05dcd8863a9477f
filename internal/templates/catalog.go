package templates

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"reqforge/internal/domain/models/brd"
)

//go:embed config/templates.yaml
var configFiles embed.FS

// Catalog maps template identifiers to their structural instructions.
// Safe for concurrent use; an override file may replace entries at runtime.
type Catalog struct {
	mu           sync.RWMutex
	templates    map[brd.TemplateType]*Template
	instructions map[brd.TemplateType]string
	logger       *slog.Logger
}

// NewCatalog loads the embedded templates.
func NewCatalog(logger *slog.Logger) (*Catalog, error) {
	data, err := configFiles.ReadFile("config/templates.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	c := &Catalog{
		templates:    make(map[brd.TemplateType]*Template),
		instructions: make(map[brd.TemplateType]string),
		logger:       logger,
	}
	if err := c.load(data); err != nil {
		return nil, fmt.Errorf("load embedded templates: %w", err)
	}
	return c, nil
}

// InstructionsFor returns the prompt instructions for id, or "" when the id
// is unknown so generation can still proceed unstructured.
func (c *Catalog) InstructionsFor(id brd.TemplateType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instructions[id]
}

// Get returns the template definition for id.
func (c *Catalog) Get(id brd.TemplateType) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	return t, ok
}

// List returns the templates in their canonical order.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Template, 0, len(c.templates))
	for _, id := range brd.TemplateTypes {
		if t, ok := c.templates[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Progress reports how many required sections of the template appear as
// headings in content.
func (c *Catalog) Progress(id brd.TemplateType, content brd.Content) brd.Progress {
	t, ok := c.Get(id)
	if !ok || len(t.Sections) == 0 {
		return brd.Progress{}
	}

	headings := headingsOf(content)
	done := 0
	for _, s := range t.Sections {
		title := strings.ToLower(s.Title)
		for _, h := range headings {
			if strings.Contains(h, title) {
				done++
				break
			}
		}
	}

	return brd.Progress{
		CompletionPercentage: done * 100 / len(t.Sections),
		SectionsCompleted:    done,
		TotalSections:        len(t.Sections),
	}
}

// headingsOf returns lower-cased heading lines of the content. Structured
// content contributes its section names.
func headingsOf(content brd.Content) []string {
	if content.Kind == brd.ContentStructured {
		out := make([]string, 0, len(content.Sections))
		for name := range content.Sections {
			out = append(out, strings.ToLower(name))
		}
		return out
	}

	var out []string
	for _, line := range strings.Split(content.Markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			out = append(out, strings.ToLower(strings.TrimLeft(line, "# ")))
		}
	}
	return out
}

// LoadFile merges templates from a YAML file over the current set.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read templates file: %w", err)
	}
	if err := c.load(data); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	c.logger.Info("templates loaded", "path", path)
	return nil
}

func (c *Catalog) load(data []byte) error {
	var defs []Template
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("unmarshal templates: %w", err)
	}

	for i := range defs {
		if !defs[i].ID.Valid() {
			return fmt.Errorf("unknown template id %q", defs[i].ID)
		}
		if len(defs[i].Sections) == 0 {
			return fmt.Errorf("template %q has no sections", defs[i].ID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range defs {
		t := defs[i]
		c.templates[t.ID] = &t
		c.instructions[t.ID] = t.Instructions()
	}
	return nil
}

// Watch reloads path whenever it changes until ctx is cancelled. The parent
// directory is watched so editors that replace the file are handled.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := c.LoadFile(path); err != nil {
					c.logger.Warn("template reload failed, keeping previous set", "path", path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("template watcher error", "error", err)
			}
		}
	}()

	return nil
}
