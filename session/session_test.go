package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafwise/leafwise/types"
)

func userTurn(text string) types.Turn {
	return types.Turn{ID: "t-" + text, Role: types.RoleUser, Text: text, Timestamp: time.Now()}
}

func rustDetection() types.DetectionResult {
	return types.DetectionResult{Label: "Rust", Confidence: 0.9, Timestamp: time.Now()}
}

func TestSession_HistoryPreservesAppendOrder(t *testing.T) {
	t.Parallel()
	s := New("s1")
	for i := 0; i < 5; i++ {
		s.Append(userTurn(fmt.Sprintf("m%d", i)))
	}

	hist := s.History(0)
	require.Len(t, hist, 5)
	for i, turn := range hist {
		assert.Equal(t, fmt.Sprintf("m%d", i), turn.Text)
	}

	last2 := s.History(2)
	require.Len(t, last2, 2)
	assert.Equal(t, "m3", last2[0].Text)
	assert.Equal(t, "m4", last2[1].Text)
}

func TestSession_HistoryLimitLargerThanLog(t *testing.T) {
	t.Parallel()
	s := New("s1")
	s.Append(userTurn("only"))

	assert.Len(t, s.History(10), 1)
}

func TestSession_StateMachine(t *testing.T) {
	t.Parallel()
	s := New("s1")
	assert.Equal(t, StateEmpty, s.State())

	s.SetActiveDetection(rustDetection())
	assert.Equal(t, StateDetected, s.State())

	s.Append(userTurn("what now?"))
	assert.Equal(t, StateConversing, s.State())

	// A new detection re-grounds without discarding turns.
	s.SetActiveDetection(types.DetectionResult{Label: "Phoma", Confidence: 0.7})
	assert.Equal(t, StateConversing, s.State())
	assert.Equal(t, 1, s.TurnCount())
	assert.Equal(t, "Phoma", s.ActiveDetection().Label)
	assert.Len(t, s.Detections(), 2, "older detections stay in history")
}

func TestSession_ActiveDetectionCopies(t *testing.T) {
	t.Parallel()
	s := New("s1")
	assert.Nil(t, s.ActiveDetection())

	s.SetActiveDetection(rustDetection())
	d := s.ActiveDetection()
	d.Label = "mutated"
	assert.Equal(t, "Rust", s.ActiveDetection().Label)
}

func TestSession_AppendCopiesCitations(t *testing.T) {
	t.Parallel()
	s := New("s1")
	cited := []types.ChunkID{"c-1", "c-2"}
	turn := userTurn("answered")
	turn.CitedChunkIDs = cited
	s.Append(turn)

	cited[0] = "c-mutated"
	assert.Equal(t, types.ChunkID("c-1"), s.History(0)[0].CitedChunkIDs[0])
}

func TestSession_SerializedTurnsKeepSubmissionOrder(t *testing.T) {
	t.Parallel()
	s := New("s1")

	const n = 16
	var wg sync.WaitGroup
	next := make(chan int, 1)
	next <- 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Admit goroutines in submission order, then run the
			// append under the turn lock as the engine does.
			for {
				turn := <-next
				if turn == i {
					break
				}
				next <- turn
			}
			s.BeginTurn()
			s.Append(userTurn(fmt.Sprintf("m%d", i)))
			s.EndTurn()
			next <- i + 1
		}(i)
	}
	wg.Wait()

	hist := s.History(0)
	require.Len(t, hist, n)
	for i, turn := range hist {
		assert.Equal(t, fmt.Sprintf("m%d", i), turn.Text)
	}
}
