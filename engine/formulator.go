package engine

import (
	"fmt"
	"strings"

	"github.com/leafwise/leafwise/session"
	"github.com/leafwise/leafwise/types"
)

// remedyTemplate is the canonical first-turn query for a fresh detection.
const remedyTemplate = "symptoms, causes, and remedy for %s"

// Formulator builds retrieval query strings from session state. Formulation
// is a pure function of the session log, the active detection, and the
// current input: unchanged state always yields an identical query.
type Formulator struct{}

// NewFormulator creates a query formulator.
func NewFormulator() *Formulator { return &Formulator{} }

// Formulate builds the retrieval query for the current turn.
//
// First turn with an active detection: the fixed remedy template around the
// disease label (the detection itself asks the first question). Subsequent
// turns with a detection: the label is prepended so retrieval stays
// anchored to the diagnosed condition even when the user's phrasing drifts.
// No detection: the utterance verbatim. Empty input is rejected except on
// the auto-remedy first turn.
func (f *Formulator) Formulate(sess *session.Session, userInput string) (string, error) {
	userInput = strings.TrimSpace(userInput)
	detection := sess.ActiveDetection()
	firstTurn := sess.TurnCount() == 0

	if userInput == "" {
		if firstTurn && detection != nil {
			return fmt.Sprintf(remedyTemplate, detection.Label), nil
		}
		return "", types.NewError(types.ErrInvalidInput, "empty user input")
	}

	if detection == nil {
		return userInput, nil
	}

	if firstTurn {
		return fmt.Sprintf(remedyTemplate, detection.Label), nil
	}

	// Label only: enough to keep grounding without drowning the query.
	return detection.Label + ": " + userInput, nil
}

// RemedyQuestion renders the auto-remedy question shown as the user turn
// when a detection triggers the first exchange.
func RemedyQuestion(label string) string {
	return fmt.Sprintf("What is the remedy for %s in coffee leaves? Provide detailed treatment and prevention methods.", label)
}
