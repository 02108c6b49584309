package types

import "time"

// ChunkID identifies a retrieval unit in the knowledge store.
type ChunkID string

// BoundingBox is an axis-aligned region in image pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectionResult is a normalized detector output: one labeled disease
// region with a confidence score. Immutable once produced.
type DetectionResult struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"` // [0,1]
	Region     BoundingBox `json:"region"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Turn is one conversation entry. Immutable once appended; CitedChunkIDs
// reference only chunks present in the retrieval result consumed to produce
// the turn.
type Turn struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	CitedChunkIDs []ChunkID `json:"cited_chunk_ids,omitempty"`
}

// Answer is the result of one conversational turn: the generated text plus
// the chunks the answer actually draws from. Ungrounded marks answers
// produced without usable retrieval evidence ("no sources found").
type Answer struct {
	Text          string            `json:"text"`
	CitedChunkIDs []ChunkID         `json:"cited_chunk_ids"`
	Ungrounded    bool              `json:"ungrounded,omitempty"`
	Detections    []DetectionResult `json:"detections,omitempty"`
}
