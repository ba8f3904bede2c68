package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offer-goat/offer-goat/internal/server"
)

func TestGenerateTrackingScript(t *testing.T) {
	script := server.GenerateTrackingScript("https://og.example.com")

	assert.Contains(t, script, "var S='https://og.example.com';")
	assert.Contains(t, script, "/v/assign?e=")
	assert.Contains(t, script, "'/v/visit'")
	assert.Contains(t, script, "'/v/event'")
	assert.Contains(t, script, "[data-og-step]")
	assert.Contains(t, script, "time_on_page")
	assert.NotContains(t, script, "%!")
}

func TestTrackingJSEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, server.Options{})

	req := httptest.NewRequest(http.MethodGet, "/og.js", nil)
	req.Host = "localhost:8080"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "var S='http://localhost:8080';")
}
