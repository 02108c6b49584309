// Package tokenizer provides model-aware token counting backed by tiktoken,
// with a character-based estimate fallback when the encoding is unavailable.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/leafwise/leafwise/types"
)

const defaultEncoding = "cl100k_base"

// modelEncodings maps model-name prefixes to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"llama3":                 "cl100k_base",
	"llama-3":                "cl100k_base",
}

// Tiktoken implements types.Tokenizer using a tiktoken encoding.
// When the encoding cannot be initialized (e.g., no BPE data available),
// counting silently degrades to the character-based estimator.
type Tiktoken struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	fallback *types.EstimateTokenizer
	once     sync.Once
	initErr  error
}

// New creates a tokenizer for the given model name.
func New(model string) *Tiktoken {
	encoding := defaultEncoding
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) {
			encoding = enc
			break
		}
	}
	return &Tiktoken{
		model:    model,
		encoding: encoding,
		fallback: types.NewEstimateTokenizer(),
	}
}

// init lazily initializes the tiktoken encoding (may load BPE data on
// first use).
func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = err
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens counts tokens in a text string.
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessageTokens counts tokens in a single message, including the
// per-message framing overhead.
func (t *Tiktoken) CountMessageTokens(msg types.Message) int {
	return 4 + t.CountTokens(msg.Content)
}

// CountMessagesTokens counts total tokens in a message slice.
func (t *Tiktoken) CountMessagesTokens(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += t.CountMessageTokens(m)
	}
	return total
}
