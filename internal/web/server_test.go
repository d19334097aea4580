package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, ws *WebServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthWithoutDatabase(t *testing.T) {
	ws := NewWebServer("0")

	rec := doRequest(t, ws, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DEGRADED", body["status"])
	assert.Equal(t, false, body["database_healthy"])
}

func TestInvalidRunID(t *testing.T) {
	ws := NewWebServer("0")

	rec := doRequest(t, ws, "/api/runs/not-a-number")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["error"])
}

func TestInvalidVariantIndex(t *testing.T) {
	ws := NewWebServer("0")

	rec := doRequest(t, ws, "/api/runs/1/variants/-1/ticks")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	ws := NewWebServer("0")

	rec := doRequest(t, ws, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
