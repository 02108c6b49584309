package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_Health(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestHealthHandler_ReadyWithPassingChecks(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck("knowledge", func() error { return nil })

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["knowledge"])
}

func TestHealthHandler_ReadyWithFailingCheck(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck("knowledge", func() error { return errors.New("snapshot not loaded") })

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_Version(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-01-01", "abc123")(rec,
		httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "1.2.3", data["version"])
}
