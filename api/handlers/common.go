package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/types"
)

// Response is the unified API response envelope.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorInfo carries a structured error to API clients.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out; nothing left to do.
		return
	}
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error envelope from any error, mapping structured
// engine errors onto HTTP status codes.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var terr *types.Error
	if !errors.As(err, &terr) {
		terr = types.NewError(types.ErrInternalError, err.Error())
	}

	status := terr.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(terr.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(terr.Code)),
			zap.String("message", terr.Message),
			zap.Int("status", status),
			zap.Bool("retryable", terr.Retryable),
			zap.Error(terr.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(terr.Code),
			Message:   terr.Message,
			Retryable: terr.Retryable,
		},
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage writes a simple error message.
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx client errors
	case types.ErrInvalidInput, types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrSessionNotFound:
		return http.StatusNotFound
	case types.ErrRateLimited:
		return http.StatusTooManyRequests

	// 5xx server errors
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrGenerationFailed, types.ErrDetectionFailed, types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrRetrievalFailed:
		return http.StatusServiceUnavailable
	case types.ErrBudgetExceeded, types.ErrInternalError:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body in strict mode.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}
