package api

import (
	"time"

	"github.com/leafwise/leafwise/types"
)

// SessionResponse describes a session to API clients.
type SessionResponse struct {
	SessionID       string                 `json:"session_id"`
	State           string                 `json:"state"`
	TurnCount       int                    `json:"turn_count"`
	ActiveDetection *types.DetectionResult `json:"active_detection,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// TurnRequest is a JSON turn submission. Image-bearing turns use
// multipart/form-data with a "message" field and an "image" file instead.
type TurnRequest struct {
	Message string `json:"message"`
}

// TurnResponse is the result of one conversational turn.
type TurnResponse struct {
	SessionID  string                  `json:"session_id"`
	Answer     string                  `json:"answer"`
	Citations  []types.ChunkID         `json:"citations"`
	Ungrounded bool                    `json:"ungrounded,omitempty"`
	Detections []types.DetectionResult `json:"detections,omitempty"`
}

// HistoryResponse lists a session's conversation log.
type HistoryResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []types.Turn `json:"turns"`
}
