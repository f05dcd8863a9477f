// Package scraper fetches public web pages and reduces them to Markdown text
// for use as chat context.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"reqforge/internal/config"
	"reqforge/internal/service/brd/prompt"
)

// Scraper implements the brd.WebScraper interface.
type Scraper struct {
	fetcher   *fetcher
	converter *htmlConverter
	maxChars  int
	logger    *slog.Logger
}

// New builds a scraper from config. maxChars bounds the returned text.
func New(cfg config.ScrapeConfig, maxChars int, logger *slog.Logger) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		fetcher:   newFetcher(timeout, cfg.UserAgent, cfg.MaxBytes, cfg.AllowPrivate),
		converter: newHTMLConverter(),
		maxChars:  maxChars,
		logger:    logger,
	}
}

// Scrape returns "Title: ...\n\n<markdown>" for HTML pages and the raw body
// for plain text. The result is truncated to maxChars.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()

	pg, err := s.fetcher.fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("scrape failed", "url", rawURL, "error", err)
		return "", err
	}

	text, err := s.extract(pg)
	if err != nil {
		s.logger.Warn("scrape conversion failed", "url", rawURL, "error", err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable content at %s", rawURL)
	}

	s.logger.Debug("scraped page",
		"url", rawURL,
		"bytes", len(pg.body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return prompt.Truncate(text, s.maxChars), nil
}

func (s *Scraper) extract(pg *page) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(pg.contentType)
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, markdown, err := s.converter.convert(pg.body)
		if err != nil {
			return "", err
		}
		if title == "" {
			return markdown, nil
		}
		return "Title: " + title + "\n\n" + markdown, nil
	case strings.HasPrefix(mediaType, "text/"):
		return strings.TrimSpace(string(pg.body)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}
