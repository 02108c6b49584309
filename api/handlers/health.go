package handlers

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReadyCheck reports whether one dependency is ready to serve.
type ReadyCheck func() error

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	logger  *zap.Logger
	started time.Time

	mu     sync.RWMutex
	checks map[string]ReadyCheck
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		started: time.Now(),
		checks:  make(map[string]ReadyCheck),
	}
}

// RegisterCheck adds a named readiness check.
func (h *HealthHandler) RegisterCheck(name string, check ReadyCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HandleHealth is the liveness endpoint.
//
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// HandleReady is the readiness endpoint: every registered check must pass.
//
// GET /ready
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(); err != nil {
			ready = false
			status[name] = err.Error()
			h.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
		} else {
			status[name] = "ok"
		}
	}

	if !ready {
		WriteJSON(w, http.StatusServiceUnavailable, Response{
			Success:   false,
			Data:      status,
			Timestamp: time.Now(),
		})
		return
	}

	WriteSuccess(w, status)
}

// HandleVersion returns build metadata.
//
// GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
