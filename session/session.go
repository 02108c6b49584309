package session

import (
	"sync"
	"time"

	"github.com/leafwise/leafwise/types"
)

// State describes where a session is in its lifecycle.
type State string

const (
	// StateEmpty: no turns, no detection.
	StateEmpty State = "empty"
	// StateDetected: a detection is active but no turns exist yet.
	StateDetected State = "detected"
	// StateConversing: at least one turn has been appended.
	StateConversing State = "conversing"
)

// Session owns one conversation memory and zero-or-one active detection.
// A new detection re-enters detected-flavored grounding without discarding
// prior turns; history is append-only across detections.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu         sync.RWMutex
	turnMu     sync.Mutex
	turns      []types.Turn
	active     *types.DetectionResult
	detections []types.DetectionResult
}

// New creates a session with the given id.
func New(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
	}
}

// BeginTurn acquires the per-session turn lock. Turns within a session are
// processed strictly in submission order; callers must pair this with
// EndTurn.
func (s *Session) BeginTurn() { s.turnMu.Lock() }

// EndTurn releases the per-session turn lock.
func (s *Session) EndTurn() { s.turnMu.Unlock() }

// Append adds a turn to the end of the conversation log.
func (s *Session) Append(turn types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Defensive copy keeps the stored turn immutable even if the caller
	// reuses the citation slice.
	if len(turn.CitedChunkIDs) > 0 {
		cited := make([]types.ChunkID, len(turn.CitedChunkIDs))
		copy(cited, turn.CitedChunkIDs)
		turn.CitedChunkIDs = cited
	}
	s.turns = append(s.turns, turn)
}

// History returns the last limit turns in append order. limit <= 0 returns
// the full log.
func (s *Session) History(limit int) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.turns) {
		start = len(s.turns) - limit
	}
	out := make([]types.Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// TurnCount returns the number of appended turns.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// SetActiveDetection replaces the active detection. The previous detection
// stays in the detection history for context; only the most recent grounds
// new queries.
func (s *Session) SetActiveDetection(d types.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &d
	s.detections = append(s.detections, d)
}

// ActiveDetection returns the active detection, or nil when none is set.
func (s *Session) ActiveDetection() *types.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	d := *s.active
	return &d
}

// Detections returns every detection recorded in this session, oldest first.
func (s *Session) Detections() []types.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DetectionResult, len(s.detections))
	copy(out, s.detections)
	return out
}

// State derives the lifecycle state from the log and detection fields.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case len(s.turns) > 0:
		return StateConversing
	case s.active != nil:
		return StateDetected
	default:
		return StateEmpty
	}
}

// snapshot is the serializable form of a session, used by persistent stores.
type snapshot struct {
	ID         string                  `json:"id"`
	CreatedAt  time.Time               `json:"created_at"`
	Turns      []types.Turn            `json:"turns"`
	Active     *types.DetectionResult  `json:"active,omitempty"`
	Detections []types.DetectionResult `json:"detections,omitempty"`
}

func (s *Session) toSnapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Turns:      append([]types.Turn(nil), s.turns...),
		Detections: append([]types.DetectionResult(nil), s.detections...),
	}
	if s.active != nil {
		d := *s.active
		snap.Active = &d
	}
	return snap
}

func fromSnapshot(snap snapshot) *Session {
	return &Session{
		ID:         snap.ID,
		CreatedAt:  snap.CreatedAt,
		turns:      snap.Turns,
		active:     snap.Active,
		detections: snap.Detections,
	}
}
