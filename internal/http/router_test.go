package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiente/translate/urduwriter/internal/pipeline"
	"github.com/obiente/translate/urduwriter/internal/ws"
)

func get(t *testing.T, h http.Handler, path string) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter(t *testing.T) {
	wss := ws.NewServer(pipeline.New(nil, nil, nil, nil), "ur-PK", "Unknown Font")
	h := NewRouter(wss, "ur-PK", "Unknown Font")

	health := get(t, h, "/healthz")
	assert.Equal(t, true, health["ok"])
	assert.Equal(t, float64(0), health["sessions"])

	opts := get(t, h, "/api/options")
	assert.Equal(t, "ur-PK", opts["default_language"])
	assert.Equal(t, "Noto Nastaliq Urdu", opts["default_font"])
	assert.Len(t, opts["languages"], 3)
	assert.Len(t, opts["fonts"], 4)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/session", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
