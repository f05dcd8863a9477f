package scraper

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/config"
	"reqforge/internal/service/brd/prompt"
)

func testScraper(maxChars int) *Scraper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(config.ScrapeConfig{
		Timeout:      2 * time.Second,
		UserAgent:    "reqforge-test",
		MaxBytes:     1 << 20,
		AllowPrivate: true,
	}, maxChars, logger)
}

func TestScrape_ExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "reqforge-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><head><title>Acme Pricing</title><script>var x=1;</script></head>
<body><nav>Home | About</nav><main><h1>Plans</h1><p>Starter costs <b>$10</b>.</p></main><footer>(c) Acme</footer></body></html>`)
	}))
	defer srv.Close()

	text, err := testScraper(15000).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "Title: Acme Pricing\n\n"))
	assert.Contains(t, text, "# Plans")
	assert.Contains(t, text, "**$10**")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "var x")
}

func TestScrape_StripsChromeWithoutMain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><body><div class="sidebar">links</div><p>Body text</p><footer>foot</footer></body></html>`)
	}))
	defer srv.Close()

	text, err := testScraper(15000).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Body text", text)
}

func TestScrape_PlainTextAndTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, strings.Repeat("a", 50))
	}))
	defer srv.Close()

	text, err := testScraper(20).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 20)+prompt.TruncationMarker, text)
}

func TestScrape_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte{0x00, 0x01})
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		}
	}))
	defer srv.Close()

	s := testScraper(15000)
	for _, path := range []string{"/missing", "/binary", "/loop"} {
		_, err := s.Scrape(context.Background(), srv.URL+path)
		assert.Error(t, err, path)
	}
}

func TestScrape_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	s := New(config.ScrapeConfig{MaxBytes: 10, AllowPrivate: true}, 15000, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestScrape_RefusesPrivateTargets(t *testing.T) {
	s := New(config.ScrapeConfig{MaxBytes: 1024}, 15000, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, target := range []string{"http://127.0.0.1:8080/", "http://localhost/", "http://10.0.0.5/", "ftp://example.com/"} {
		_, err := s.Scrape(context.Background(), target)
		assert.Error(t, err, target)
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"100.64.0.1", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"fd00::1", true},
		{"::ffff:10.0.0.1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrivateIP(net.ParseIP(tt.ip)), tt.ip)
	}
}
