package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/detector"
	"github.com/leafwise/leafwise/internal/metrics"
	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/rag"
	"github.com/leafwise/leafwise/session"
	"github.com/leafwise/leafwise/types"
)

// Options wires the engine's collaborators. Sessions, Retriever, and
// Provider are required; Detector and Metrics are optional.
type Options struct {
	Sessions     session.Store
	Detector     detector.Detector
	Retriever    *rag.Retriever
	Provider     llm.Provider
	Tokenizer    types.Tokenizer
	Assembler    AssemblerConfig
	Orchestrator OrchestratorConfig
	Metrics      *metrics.Collector
	Logger       *zap.Logger
}

// Engine is the conversation engine: it exposes HandleTurn and nothing
// UI-specific.
type Engine struct {
	sessions     session.Store
	detector     detector.Detector
	retriever    *rag.Retriever
	formulator   *Formulator
	assembler    *Assembler
	orchestrator *Orchestrator
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// New creates a conversation engine.
func New(opts Options) (*Engine, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("engine: session store is required")
	}
	if opts.Retriever == nil {
		return nil, fmt.Errorf("engine: retriever is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("engine: llm provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		sessions:     opts.Sessions,
		detector:     opts.Detector,
		retriever:    opts.Retriever,
		formulator:   NewFormulator(),
		assembler:    NewAssembler(opts.Assembler, opts.Tokenizer, logger),
		orchestrator: NewOrchestrator(opts.Provider, opts.Orchestrator, logger),
		metrics:      opts.Metrics,
		logger:       logger,
	}, nil
}

// CreateSession starts a new interaction scope.
func (e *Engine) CreateSession(ctx context.Context) (*session.Session, error) {
	return e.sessions.Create(ctx)
}

// Session returns an existing session.
func (e *Engine) Session(ctx context.Context, id string) (*session.Session, error) {
	return e.sessions.Get(ctx, id)
}

// DeleteSession destroys a session when the interaction ends.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}

// HandleTurn processes one user turn: optional detection, query
// formulation, retrieval, context assembly, generation, and memory append.
// The pipeline is strictly sequential; a failure or cancellation anywhere
// before the final append leaves conversation memory unchanged.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userInput string, image []byte) (types.Answer, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return types.Answer{}, err
	}

	// Turns within a session run strictly in submission order.
	sess.BeginTurn()
	defer sess.EndTurn()

	start := time.Now()
	answer, status, err := e.runTurn(ctx, sess, strings.TrimSpace(userInput), image)
	if e.metrics != nil {
		e.metrics.ObserveTurn(status, time.Since(start))
	}
	return answer, err
}

func (e *Engine) runTurn(ctx context.Context, sess *session.Session, userInput string, image []byte) (types.Answer, string, error) {
	newDetections, err := e.detect(ctx, sess, image)
	if err != nil {
		return types.Answer{}, "detection_failed", err
	}

	// A fresh detection with no utterance triggers the automatic remedy
	// question; an empty utterance otherwise is rejected before any
	// retrieval or generation happens.
	autoRemedy := userInput == "" && len(newDetections) > 0
	userText := userInput
	if autoRemedy {
		userText = RemedyQuestion(sess.ActiveDetection().Label)
	}
	if userText == "" {
		return types.Answer{}, "invalid_input",
			types.NewError(types.ErrInvalidInput, "empty user input")
	}

	evidence, err := e.gatherEvidence(ctx, sess, userInput, userText, autoRemedy)
	if err != nil {
		if ctx.Err() != nil {
			return types.Answer{}, "canceled", err
		}
		return types.Answer{}, "invalid_input", err
	}

	pc, err := e.assembler.Assemble(sess, evidence, userText)
	if err != nil {
		return types.Answer{}, "budget_exceeded", err
	}

	genStart := time.Now()
	answer, err := e.orchestrator.Generate(ctx, pc)
	if e.metrics != nil {
		e.metrics.ObserveGeneration(time.Since(genStart))
	}
	if err != nil {
		return types.Answer{}, "generation_failed", err
	}
	if answer.Ungrounded && e.metrics != nil {
		e.metrics.ObserveUngrounded()
	}

	// A cancellation that raced the generation call aborts the turn
	// before anything is persisted.
	if ctx.Err() != nil {
		return types.Answer{}, "canceled",
			fmt.Errorf("turn canceled before append: %w", ctx.Err())
	}

	now := time.Now()
	sess.Append(types.Turn{
		ID:        uuid.NewString(),
		Role:      types.RoleUser,
		Text:      userText,
		Timestamp: now,
	})
	sess.Append(types.Turn{
		ID:            uuid.NewString(),
		Role:          types.RoleAssistant,
		Text:          answer.Text,
		Timestamp:     now,
		CitedChunkIDs: answer.CitedChunkIDs,
	})
	if err := e.sessions.Save(ctx, sess); err != nil {
		// Memory holds the turn; persistence is best-effort and the
		// answer still reaches the user.
		e.logger.Warn("session save failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}

	answer.Detections = newDetections
	return answer, "ok", nil
}

// detect runs the detector over an image payload, if any, and activates
// the strongest detection. All detections stay in session history.
func (e *Engine) detect(ctx context.Context, sess *session.Session, image []byte) ([]types.DetectionResult, error) {
	if len(image) == 0 {
		return nil, nil
	}
	if e.detector == nil {
		return nil, types.NewError(types.ErrDetectionFailed, "no detector configured")
	}

	results, err := e.detector.Detect(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		e.logger.Info("no disease detected", zap.String("session_id", sess.ID))
		return nil, nil
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	sess.SetActiveDetection(best)
	if e.metrics != nil {
		for _, r := range results {
			e.metrics.ObserveDetection(r.Label)
		}
	}

	e.logger.Info("detection activated",
		zap.String("session_id", sess.ID),
		zap.String("label", best.Label),
		zap.Float64("confidence", best.Confidence))

	return results, nil
}

// gatherEvidence formulates the retrieval query and executes it. Greetings
// and off-topic questions skip retrieval entirely; a failed retrieval
// degrades to ungrounded generation instead of aborting the turn.
func (e *Engine) gatherEvidence(ctx context.Context, sess *session.Session, userInput, userText string, autoRemedy bool) (rag.RetrievalResult, error) {
	if !autoRemedy && (IsGreeting(userText) || !IsOnTopic(userText)) {
		e.logger.Debug("scope gate bypassed retrieval", zap.String("session_id", sess.ID))
		return nil, nil
	}

	formulateInput := userInput
	if autoRemedy && sess.TurnCount() > 0 {
		formulateInput = userText
	}
	query, err := e.formulator.Formulate(sess, formulateInput)
	if err != nil {
		return nil, err
	}

	retrStart := time.Now()
	evidence, err := e.retriever.Retrieve(ctx, query)
	if e.metrics != nil {
		e.metrics.ObserveRetrieval(time.Since(retrStart), len(evidence))
	}
	if err != nil {
		var terr *types.Error
		if errors.As(err, &terr) && terr.Code == types.ErrRetrievalFailed {
			// A retrieval that failed because the caller went away is a
			// cancellation, not grounds for an ungrounded generation call.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("turn canceled during retrieval: %w", ctx.Err())
			}
			e.logger.Warn("retrieval failed, continuing ungrounded",
				zap.String("session_id", sess.ID),
				zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return evidence, nil
}
