package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/domain"
	"reqforge/internal/domain/models"
	"reqforge/internal/httputil"
)

type tokenTable map[string]string

func (t tokenTable) VerifyToken(token string) (*models.SupabaseClaims, error) {
	user, ok := t[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	c := &models.SupabaseClaims{Role: "authenticated"}
	c.Subject = user
	return c, nil
}

func (tokenTable) Close() error { return nil }

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, httputil.GetUserID(r))
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(tokenTable{"good": "user-1"})(echoUser())

	tests := []struct {
		name   string
		method string
		target string
		header string
		status int
		body   string
	}{
		{"bearer token", http.MethodGet, "/api/projects", "Bearer good", http.StatusOK, "user-1"},
		{"lowercase scheme", http.MethodGet, "/api/projects", "bearer good", http.StatusOK, "user-1"},
		{"missing token", http.MethodGet, "/api/projects", "", http.StatusUnauthorized, ""},
		{"bad token", http.MethodGet, "/api/projects", "Bearer nope", http.StatusUnauthorized, ""},
		{"query token on socket", http.MethodGet, "/ws?access_token=good", "", http.StatusOK, "user-1"},
		{"query token elsewhere", http.MethodGet, "/api/projects?access_token=good", "", http.StatusUnauthorized, ""},
		{"health is public", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"preflight passes", http.MethodOptions, "/api/projects", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("kaboom"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {})
	h := pm.Handler(mux)

	for _, target := range []string{"/api/projects/a", "/api/projects/b", "/nowhere", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", "GET /api/projects/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.requestCount.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.requestCount))

	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err, "duplicate registration")
}
