package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/api"
	"github.com/leafwise/leafwise/types"
)

// TurnHandler serves turn submission: a text message, an image, or both.
type TurnHandler struct {
	engine        Engine
	maxImageBytes int64
	logger        *zap.Logger
}

// NewTurnHandler creates a turn handler. maxImageBytes bounds image
// uploads; zero means 8 MiB.
func NewTurnHandler(engine Engine, maxImageBytes int64, logger *zap.Logger) *TurnHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 8 << 20
	}
	return &TurnHandler{engine: engine, maxImageBytes: maxImageBytes, logger: logger}
}

// HandleSubmit processes one conversational turn. JSON bodies carry text
// only; multipart bodies may add an "image" file for disease detection.
//
// POST /api/v1/sessions/{id}/turns
func (h *TurnHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	message, image, ok := h.parseTurn(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := h.engine.HandleTurn(r.Context(), sessionID, message, image)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("turn completed",
		zap.String("session_id", sessionID),
		zap.Int("citations", len(answer.CitedChunkIDs)),
		zap.Bool("ungrounded", answer.Ungrounded),
		zap.Bool("with_image", len(image) > 0),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, api.TurnResponse{
		SessionID:  sessionID,
		Answer:     answer.Text,
		Citations:  answer.CitedChunkIDs,
		Ungrounded: answer.Ungrounded,
		Detections: answer.Detections,
	})
}

// parseTurn extracts the message and optional image from the request. It
// writes the error response itself when parsing fails.
func (h *TurnHandler) parseTurn(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+(1<<20))
		if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
			WriteErrorMessage(w, http.StatusRequestEntityTooLarge, types.ErrInvalidRequest,
				"multipart body too large or malformed", h.logger)
			return "", nil, false
		}

		message := r.FormValue("message")

		file, _, err := r.FormFile("image")
		if err == http.ErrMissingFile {
			return message, nil, true
		}
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"invalid image upload", h.logger)
			return "", nil, false
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"failed to read image upload", h.logger)
			return "", nil, false
		}
		if int64(len(image)) > h.maxImageBytes {
			WriteErrorMessage(w, http.StatusRequestEntityTooLarge, types.ErrInvalidRequest,
				"image exceeds size limit", h.logger)
			return "", nil, false
		}

		return message, image, true
	}

	var req api.TurnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return "", nil, false
	}
	return req.Message, nil, true
}
