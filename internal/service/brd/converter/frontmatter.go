package converter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var errNoFrontmatter = errors.New("no frontmatter")

// parseFrontmatter splits a leading YAML block delimited by "---" lines from
// the Markdown body. errNoFrontmatter means the input does not start with one.
func parseFrontmatter(content []byte) (map[string]any, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return nil, content, errNoFrontmatter
	}

	lines := bytes.Split(content, []byte("\n"))
	closing := 0
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			closing = i
			break
		}
	}
	if closing == 0 {
		return nil, content, errNoFrontmatter
	}

	var metadata map[string]any
	if err := yaml.Unmarshal(bytes.Join(lines[1:closing], []byte("\n")), &metadata); err != nil {
		return nil, content, fmt.Errorf("parse YAML frontmatter: %w", err)
	}

	return metadata, bytes.Join(lines[closing+1:], []byte("\n")), nil
}
