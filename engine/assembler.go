package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/rag"
	"github.com/leafwise/leafwise/session"
	"github.com/leafwise/leafwise/types"
)

// DefaultSystemPrompt is the static instruction block. It mirrors the
// grounding contract: answer from evidence, cite markers, admit gaps.
const DefaultSystemPrompt = `You are a coffee agriculture assistant helping farmers diagnose and treat coffee leaf diseases.
Use the knowledge-base evidence provided below to answer the question, and cite every piece of evidence you rely on with its [S#] marker.
If the evidence does not contain relevant information, say that you don't have specific information about this topic in your knowledge base. Do not make up an answer.`

// ungroundedNotice is appended to the instructions when no evidence is
// available, so the answer is explicit about being ungrounded.
const ungroundedNotice = `No knowledge-base evidence is available for this question. Answer from general agricultural knowledge, be honest about the limits of what you know, and do not fabricate sources.`

// AssemblerConfig configures context assembly.
type AssemblerConfig struct {
	// MaxTokens is the hard context budget.
	MaxTokens int `yaml:"max_tokens"`

	// HistoryLimit is the largest number of recent turns considered
	// before budget trimming. Zero means 10.
	HistoryLimit int `yaml:"history_limit"`

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string `yaml:"system_prompt"`
}

// PromptContext is an assembled, within-budget prompt plus the bookkeeping
// needed for citation tracking.
type PromptContext struct {
	Messages         []types.Message
	IncludedChunkIDs []types.ChunkID
	Markers          map[types.ChunkID]string
	Ungrounded       bool
}

// Assembler merges instructions, evidence, history, and the current turn
// into a bounded prompt. Truncation priority: oldest history first, then
// lowest-relevance evidence; instructions and the current turn are never
// dropped.
type Assembler struct {
	cfg       AssemblerConfig
	tokenizer types.Tokenizer
	logger    *zap.Logger
}

// NewAssembler creates a context assembler. tokenizer may be nil, which
// falls back to character-based estimation.
func NewAssembler(cfg AssemblerConfig, tokenizer types.Tokenizer, logger *zap.Logger) *Assembler {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if tokenizer == nil {
		tokenizer = types.NewEstimateTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{cfg: cfg, tokenizer: tokenizer, logger: logger}
}

// Assemble composes the prompt in fixed order: instructions, evidence with
// inline source markers, bounded history window, current user turn.
func (a *Assembler) Assemble(sess *session.Session, evidence rag.RetrievalResult, userInput string) (*PromptContext, error) {
	systemPrompt := a.cfg.SystemPrompt
	if len(evidence) == 0 {
		systemPrompt = systemPrompt + "\n\n" + ungroundedNotice
	}
	sysMsg := types.NewSystemMessage(systemPrompt)
	userMsg := types.NewUserMessage(userInput)

	mandatory := a.tokenizer.CountMessageTokens(sysMsg) + a.tokenizer.CountMessageTokens(userMsg)
	if mandatory > a.cfg.MaxTokens {
		return nil, types.NewError(types.ErrBudgetExceeded,
			fmt.Sprintf("system instructions and current turn need %d tokens, budget is %d; this is a configuration error",
				mandatory, a.cfg.MaxTokens))
	}

	history := sess.History(a.cfg.HistoryLimit)
	kept := append(rag.RetrievalResult(nil), evidence...)

	droppedHistory, droppedEvidence := 0, 0
	for {
		total := mandatory + a.historyTokens(history) + a.evidenceTokens(kept)
		if total <= a.cfg.MaxTokens {
			break
		}
		// Oldest history goes first: stale chat is worth less than fresh
		// evidence for the current question.
		if len(history) > 0 {
			history = history[1:]
			droppedHistory++
			continue
		}
		if len(kept) > 0 {
			// Evidence arrives score-descending; the tail is the least
			// relevant chunk.
			kept = kept[:len(kept)-1]
			droppedEvidence++
			continue
		}
		break
	}

	if droppedHistory > 0 || droppedEvidence > 0 {
		a.logger.Debug("context truncated to budget",
			zap.String("session_id", sess.ID),
			zap.Int("dropped_history", droppedHistory),
			zap.Int("dropped_evidence", droppedEvidence))
	}

	pc := &PromptContext{
		Markers:    make(map[types.ChunkID]string, len(kept)),
		Ungrounded: len(kept) == 0,
	}

	pc.Messages = append(pc.Messages, sysMsg)
	if len(kept) > 0 {
		pc.Messages = append(pc.Messages, types.NewSystemMessage(a.renderEvidence(kept)))
		for i, sc := range kept {
			marker := fmt.Sprintf("[S%d]", i+1)
			pc.Markers[sc.Chunk.ID] = marker
			pc.IncludedChunkIDs = append(pc.IncludedChunkIDs, sc.Chunk.ID)
		}
	}
	for _, turn := range history {
		pc.Messages = append(pc.Messages, types.Message{
			Role:      turn.Role,
			Content:   turn.Text,
			Timestamp: turn.Timestamp,
		})
	}
	pc.Messages = append(pc.Messages, userMsg)

	return pc, nil
}

// renderEvidence renders chunks with inline source markers.
func (a *Assembler) renderEvidence(evidence rag.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("Knowledge base evidence:\n")
	for i, sc := range evidence {
		fmt.Fprintf(&b, "[S%d] (%s) %s\n", i+1, sc.Chunk.SourceDocument, sc.Chunk.Text)
	}
	return b.String()
}

func (a *Assembler) historyTokens(turns []types.Turn) int {
	total := 0
	for _, t := range turns {
		total += 4 + a.tokenizer.CountTokens(t.Text)
	}
	return total
}

func (a *Assembler) evidenceTokens(evidence rag.RetrievalResult) int {
	if len(evidence) == 0 {
		return 0
	}
	return 4 + a.tokenizer.CountTokens(a.renderEvidence(evidence))
}
