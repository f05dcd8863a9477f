// Package intent recognises chat commands that need work before a turn's
// prompt is built. Detection and message rewriting are pure; fetching is left
// to the caller.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	// KindScrape injects the text of a web page into the message.
	KindScrape Kind = "scrape"
)

// commands is the closed set of recognised prefixes.
var commands = map[string]Kind{
	"/scrape":   KindScrape,
	"/research": KindScrape,
}

var urlRe = regexp.MustCompile(`(?i)\bhttps?://\S+`)

// defaultInstruction replaces an empty remainder after the command.
const defaultInstruction = "Use the following web page content as additional context for the BRD."

// Intent is a recognised command.
type Intent struct {
	Kind      Kind
	URL       string
	Remainder string // The user's text with the command and URL removed
}

// Detect returns the intent carried by message, if any. A command without a
// target URL is not an intent and the message is handled as plain chat.
func Detect(message string) (Intent, bool) {
	trimmed := strings.TrimSpace(message)
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return Intent{}, false
	}

	kind, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return Intent{}, false
	}

	rest := strings.TrimSpace(trimmed[len(fields[0]):])
	target := urlRe.FindString(rest)
	if target == "" {
		// Bare host such as "competitor.com"
		candidate := strings.Fields(rest)[0]
		if !strings.Contains(candidate, ".") {
			return Intent{}, false
		}
		target = candidate
	}

	remainder := strings.TrimSpace(strings.Replace(rest, target, "", 1))
	return Intent{
		Kind:      kind,
		URL:       normalizeURL(target),
		Remainder: strings.Join(strings.Fields(remainder), " "),
	}, true
}

// normalizeURL trims trailing punctuation and defaults the scheme to https.
func normalizeURL(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?)\"'")
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	return raw
}

// Interim is the acknowledgment sent while the page is fetched.
func (i Intent) Interim() string {
	return fmt.Sprintf("Fetching %s for additional context...", i.URL)
}

// FailureNotice tells the user the fetch failed and the turn continues.
func (i Intent) FailureNotice() string {
	return fmt.Sprintf("Could not fetch %s. Continuing without web context.", i.URL)
}

// Augment builds the message that enters the prompt once pageText is known.
func (i Intent) Augment(pageText string) string {
	instruction := i.Remainder
	if instruction == "" {
		instruction = defaultInstruction
	}
	return fmt.Sprintf("%s\n\n--- SCRAPED WEB CONTEXT (%s) ---\n%s\n--- END OF SCRAPED WEB CONTEXT ---",
		instruction, i.URL, pageText)
}

// Fallback is the message used when the fetch failed.
func (i Intent) Fallback() string {
	if i.Remainder != "" {
		return i.Remainder
	}
	return fmt.Sprintf("(The page %s could not be fetched.)", i.URL)
}
