// Package detector wraps the image-detection model behind a narrow
// boundary. The model itself is an external collaborator (a hosted
// inference endpoint); this package normalizes its raw output into
// types.DetectionResult records. A clean "nothing found" outcome is an
// empty slice, never an error.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/types"
)

// Detector is the detector-adapter boundary.
type Detector interface {
	// Detect runs disease detection over an image payload. Returns zero
	// or more normalized results; an empty slice means a healthy leaf.
	Detect(ctx context.Context, image []byte) ([]types.DetectionResult, error)
}

// HTTPConfig configures the HTTP detector adapter.
type HTTPConfig struct {
	// BaseURL is the inference endpoint base URL.
	BaseURL string

	// APIKey authenticates against the endpoint. Optional.
	APIKey string

	// EndpointPath is the detection path. Defaults to "/v1/detect".
	EndpointPath string

	// Timeout is the HTTP client timeout. Defaults to 30s.
	Timeout time.Duration

	// MinConfidence filters detections below this confidence. Optional.
	MinConfidence float64
}

// HTTPDetector calls a hosted detection model over HTTP and normalizes
// its response.
type HTTPDetector struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPDetector creates an HTTP detector adapter.
func NewHTTPDetector(cfg HTTPConfig, logger *zap.Logger) *HTTPDetector {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/detect"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDetector{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type detectResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Box        struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"box"`
	} `json:"detections"`
}

// Detect posts the image to the inference endpoint and normalizes the
// labeled regions it returns.
func (d *HTTPDetector) Detect(ctx context.Context, image []byte) ([]types.DetectionResult, error) {
	if len(image) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "empty image payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.cfg.BaseURL+d.cfg.EndpointPath, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrDetectionFailed, "detection request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read detect response: %w", err)
	}

	if resp.StatusCode >= 400 {
		herr := llm.MapHTTPError(resp.StatusCode, string(respBody), "detector")
		return nil, types.NewError(types.ErrDetectionFailed, "detector returned error").
			WithCause(herr).
			WithRetryable(herr.Retryable)
	}

	var dr detectResponse
	if err := json.Unmarshal(respBody, &dr); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}

	now := time.Now()
	results := make([]types.DetectionResult, 0, len(dr.Detections))
	for _, det := range dr.Detections {
		if det.Confidence < d.cfg.MinConfidence {
			continue
		}
		results = append(results, types.DetectionResult{
			Label:      det.Label,
			Confidence: det.Confidence,
			Region: types.BoundingBox{
				X:      det.Box.X,
				Y:      det.Box.Y,
				Width:  det.Box.Width,
				Height: det.Box.Height,
			},
			Timestamp: now,
		})
	}

	d.logger.Debug("detection complete",
		zap.Int("raw", len(dr.Detections)),
		zap.Int("kept", len(results)))

	return results, nil
}
