package types

// Tokenizer defines the interface for token counting.
type Tokenizer interface {
	// CountTokens counts tokens in a text string.
	CountTokens(text string) int
	// CountMessageTokens counts tokens in a single message.
	CountMessageTokens(msg Message) int
	// CountMessagesTokens counts total tokens in a message slice.
	CountMessagesTokens(msgs []Message) int
}

// EstimateTokenizer provides a simple character-based token estimation.
// Used when an exact model encoding is unavailable.
type EstimateTokenizer struct {
	charsPerToken float64
	msgOverhead   int
}

// NewEstimateTokenizer creates a new EstimateTokenizer.
func NewEstimateTokenizer() *EstimateTokenizer {
	return &EstimateTokenizer{
		charsPerToken: 4.0,
		msgOverhead:   4,
	}
}

// CountTokens counts tokens in text.
func (t *EstimateTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := float64(len(text)) / t.charsPerToken
	if tokens < 1 {
		return 1
	}
	return int(tokens)
}

// CountMessageTokens counts tokens in a message.
func (t *EstimateTokenizer) CountMessageTokens(msg Message) int {
	return t.msgOverhead + t.CountTokens(msg.Content)
}

// CountMessagesTokens counts tokens in messages.
func (t *EstimateTokenizer) CountMessagesTokens(msgs []Message) int {
	total := 0
	for _, msg := range msgs {
		total += t.CountMessageTokens(msg)
	}
	return total
}
