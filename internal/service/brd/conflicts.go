package brd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	models "reqforge/internal/domain/models/brd"
)

const (
	conflictTypeValueMismatch = "value_mismatch"

	// maxConflicts bounds the list attached to one document
	maxConflicts = 20
)

// conflictNamespace seeds deterministic conflict IDs so a re-detected
// conflict keeps its identity and status.
var conflictNamespace = uuid.MustParse("6f1d2c4e-8a7b-4c3d-9e2f-1a0b3c5d7e9f")

type conflictRule struct {
	name  string
	left  *regexp.Regexp
	right *regexp.Regexp
}

var conflictRules = []conflictRule{
	{"obligation", regexp.MustCompile(`(?i)\bmust\s+(?:not|never)\b`), regexp.MustCompile(`(?i)\bmust\b`)},
	{"quarter", regexp.MustCompile(`(?i)\bq[1-4]\b`), regexp.MustCompile(`(?i)\bq[1-4]\b`)},
	{"budget", regexp.MustCompile(`\$[\d,]+`), regexp.MustCompile(`\$[\d,]+`)},
	{"timeline", regexp.MustCompile(`(?i)\b\d+\s*(?:weeks?|months?|days?)\b`), regexp.MustCompile(`(?i)\b\d+\s*(?:weeks?|months?|days?)\b`)},
}

var requirementLineRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)

type statement struct {
	section string
	text    string
}

// DetectConflicts scans the requirement statements of content for value
// mismatches between statements of the same section.
func DetectConflicts(content models.Content) []models.Conflict {
	statements := requirementStatements(content.Render())
	out := []models.Conflict{}
	seen := make(map[string]bool)

	for i := 0; i < len(statements); i++ {
		for j := i + 1; j < len(statements); j++ {
			a, b := statements[i], statements[j]
			if a.section != b.section {
				continue
			}
			for _, rule := range conflictRules {
				m1 := strings.ToLower(rule.left.FindString(a.text))
				m2 := strings.ToLower(rule.right.FindString(b.text))
				if m1 == "" || m2 == "" || m1 == m2 {
					continue
				}
				if rule.name == "obligation" && rule.left.MatchString(b.text) {
					continue
				}

				desc := fmt.Sprintf("Potential conflict: '%s' vs '%s'", m1, m2)
				if a.section != "" {
					desc = fmt.Sprintf("Potential conflict in %s: '%s' vs '%s'", a.section, m1, m2)
				}
				if seen[desc] {
					continue
				}
				seen[desc] = true

				out = append(out, models.Conflict{
					ID:          uuid.NewSHA1(conflictNamespace, []byte(desc)).String(),
					Type:        conflictTypeValueMismatch,
					Description: desc,
					Status:      models.ConflictOpen,
					ResolutionOptions: []string{
						fmt.Sprintf("Keep '%s'", m1),
						fmt.Sprintf("Keep '%s'", m2),
					},
				})
				if len(out) == maxConflicts {
					return out
				}
			}
		}
	}
	return out
}

// requirementStatements returns list items and "must"/"shall" sentences
// tagged with the heading they appear under.
func requirementStatements(markdown string) []statement {
	var out []statement
	section := ""
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			section = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}

		lower := strings.ToLower(trimmed)
		if requirementLineRe.MatchString(trimmed) ||
			strings.Contains(lower, "must") || strings.Contains(lower, "shall") {
			out = append(out, statement{section: section, text: requirementLineRe.ReplaceAllString(trimmed, "")})
		}
	}
	return out
}

// RefreshConflicts re-runs detection on content, keeping the triage status of
// conflicts that survive from previous.
func RefreshConflicts(content models.Content, previous []models.Conflict) []models.Conflict {
	return mergeConflicts(previous, DetectConflicts(content))
}

// mergeConflicts keeps the status of previously triaged conflicts that are
// detected again. Conflicts no longer present are dropped.
func mergeConflicts(previous, detected []models.Conflict) []models.Conflict {
	status := make(map[string]models.ConflictStatus, len(previous))
	for _, c := range previous {
		status[c.ID] = c.Status
	}
	for i := range detected {
		if s, ok := status[detected[i].ID]; ok {
			detected[i].Status = s
		}
	}
	return detected
}
