package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leafwise/leafwise/types"
)

func TestTiktoken_CountTokens(t *testing.T) {
	t.Parallel()
	tok := New("llama3-8b-8192")

	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Greater(t, tok.CountTokens("coffee leaf rust is a fungal disease"), 0)

	short := tok.CountTokens("rust")
	long := tok.CountTokens("rust spreads through airborne spores in humid conditions")
	assert.Greater(t, long, short)
}

func TestTiktoken_MessageOverhead(t *testing.T) {
	t.Parallel()
	tok := New("gpt-4o")

	msg := types.NewUserMessage("what causes leaf miner damage?")
	assert.Equal(t, tok.CountTokens(msg.Content)+4, tok.CountMessageTokens(msg))

	msgs := []types.Message{msg, types.NewAssistantMessage("larvae of Leucoptera coffeella")}
	assert.Equal(t,
		tok.CountMessageTokens(msgs[0])+tok.CountMessageTokens(msgs[1]),
		tok.CountMessagesTokens(msgs))
}

func TestTiktoken_UnknownModelFallsBackToDefaultEncoding(t *testing.T) {
	t.Parallel()
	tok := New("some-unknown-model")
	assert.Equal(t, defaultEncoding, tok.encoding)
	assert.Greater(t, tok.CountTokens("hello world"), 0)
}
