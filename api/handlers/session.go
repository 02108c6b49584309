package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/api"
	"github.com/leafwise/leafwise/session"
	"github.com/leafwise/leafwise/types"
)

// Engine is the conversation-engine boundary the handlers depend on.
type Engine interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
	HandleTurn(ctx context.Context, sessionID, userInput string, image []byte) (types.Answer, error)
}

// SessionHandler serves session lifecycle endpoints.
type SessionHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(engine Engine, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{engine: engine, logger: logger}
}

// HandleCreate creates a new session.
//
// POST /api/v1/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.CreateSession(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("session created", zap.String("session_id", sess.ID))
	WriteSuccess(w, sessionResponse(sess))
}

// HandleGet returns session state.
//
// GET /api/v1/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, sessionResponse(sess))
}

// HandleHistory returns the session's conversation log.
//
// GET /api/v1/sessions/{id}/history
func (h *SessionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.HistoryResponse{
		SessionID: sess.ID,
		Turns:     sess.History(0),
	})
}

// HandleDelete destroys a session.
//
// DELETE /api/v1/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.DeleteSession(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("session deleted", zap.String("session_id", id))
	WriteSuccess(w, map[string]string{"session_id": id})
}

func sessionResponse(sess *session.Session) api.SessionResponse {
	return api.SessionResponse{
		SessionID:       sess.ID,
		State:           string(sess.State()),
		TurnCount:       sess.TurnCount(),
		ActiveDetection: sess.ActiveDetection(),
		CreatedAt:       sess.CreatedAt,
	}
}
