package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/types"
)

func multipartTurn(t *testing.T, message string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if message != "" {
		require.NoError(t, mw.WriteField("message", message))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "leaf.jpg")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestTurnHandler_JSONTurn(t *testing.T) {
	t.Parallel()
	eng := newFakeEngine()
	eng.answer = types.Answer{
		Text:          "It is coffee leaf rust.",
		CitedChunkIDs: []types.ChunkID{"c-1", "c-2"},
	}
	h := NewTurnHandler(eng, 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns",
		strings.NewReader(`{"message":"what disease is this?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", "sess-1")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "what disease is this?", eng.lastInput)
	assert.Nil(t, eng.lastImage)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "It is coffee leaf rust.", data["answer"])
	assert.Len(t, data["citations"].([]interface{}), 2)
}

func TestTurnHandler_MultipartTurnWithImage(t *testing.T) {
	t.Parallel()
	eng := newFakeEngine()
	eng.answer = types.Answer{
		Text:       "Detected rust.",
		Detections: []types.DetectionResult{{Label: "Rust", Confidence: 0.9}},
	}
	h := NewTurnHandler(eng, 0, zap.NewNop())

	body, contentType := multipartTurn(t, "", []byte("fake-jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "sess-1")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("fake-jpeg-bytes"), eng.lastImage)
	assert.Empty(t, eng.lastInput)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	detections := data["detections"].([]interface{})
	require.Len(t, detections, 1)
	assert.Equal(t, "Rust", detections[0].(map[string]interface{})["label"])
}

func TestTurnHandler_MultipartTextOnly(t *testing.T) {
	t.Parallel()
	eng := newFakeEngine()
	eng.answer = types.Answer{Text: "ok"}
	h := NewTurnHandler(eng, 0, zap.NewNop())

	body, contentType := multipartTurn(t, "follow-up question", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "sess-1")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "follow-up question", eng.lastInput)
	assert.Nil(t, eng.lastImage)
}

func TestTurnHandler_EngineErrorsMapToStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"invalid input", types.ErrInvalidInput, http.StatusBadRequest},
		{"session not found", types.ErrSessionNotFound, http.StatusNotFound},
		{"generation failed", types.ErrGenerationFailed, http.StatusBadGateway},
		{"budget exceeded", types.ErrBudgetExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			eng := newFakeEngine()
			eng.turnErr = types.NewError(tc.code, "boom")
			h := NewTurnHandler(eng, 0, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns",
				strings.NewReader(`{"message":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			req.SetPathValue("id", "sess-1")
			rec := httptest.NewRecorder()
			h.HandleSubmit(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.Equal(t, string(tc.code), resp.Error.Code)
		})
	}
}

func TestTurnHandler_OversizedImageRejected(t *testing.T) {
	t.Parallel()
	eng := newFakeEngine()
	h := NewTurnHandler(eng, 16, zap.NewNop()) // 16-byte limit

	body, contentType := multipartTurn(t, "", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "sess-1")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, eng.lastImage, "engine never sees oversized uploads")
}

func TestTurnHandler_MalformedJSONRejected(t *testing.T) {
	t.Parallel()
	h := NewTurnHandler(newFakeEngine(), 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/turns",
		strings.NewReader(`{"message":`))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", "sess-1")
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
