package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorWithExtras(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusConflict, "stale", map[string]any{"current_version": 3, "status": "ignored"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Conflict", body["title"])
	assert.Equal(t, "stale", body["detail"])
	assert.EqualValues(t, 3, body["current_version"])
	// Standard members win over extras
	assert.EqualValues(t, http.StatusConflict, body["status"])
}

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, ParseJSON(httptest.NewRecorder(), req, &dest))
	assert.Equal(t, "x", dest.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.Error(t, ParseJSON(httptest.NewRecorder(), req, &dest))

	big := `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	assert.ErrorIs(t, ParseJSON(httptest.NewRecorder(), req, &dest), ErrBodyTooLarge)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=7&bad=x", nil)

	v, err := QueryInt(req, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = QueryInt(req, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = QueryInt(req, "bad", 50)
	assert.Error(t, err)
}

func TestOptionalString(t *testing.T) {
	var body struct {
		Description OptionalString `json:"description"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))
	assert.False(t, body.Description.Present)

	require.NoError(t, json.Unmarshal([]byte(`{"description":null}`), &body))
	assert.True(t, body.Description.Present)
	assert.Nil(t, body.Description.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"description":"brief"}`), &body))
	require.NotNil(t, body.Description.Value)
	assert.Equal(t, "brief", *body.Description.Value)
}
