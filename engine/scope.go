package engine

import "strings"

// Vocabulary for the scope gate. Greetings and questions with no
// coffee/agriculture vocabulary are answered from general knowledge
// without touching the retriever.
var (
	coffeeKeywords = []string{
		"coffee", "leaf", "disease", "plant", "crop", "fungus", "pest",
		"treatment", "remedy", "cultivation", "agriculture", "farming",
	}

	greetings = []string{
		"hi", "hello", "good morning", "good afternoon", "good evening",
		"how are you", "thanks", "thank you",
	}
)

// IsGreeting reports whether the input looks like a greeting or pleasantry.
func IsGreeting(input string) bool {
	lower := strings.ToLower(input)
	for _, g := range greetings {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}

// IsOnTopic reports whether the input mentions coffee or agriculture
// vocabulary and therefore warrants knowledge-base retrieval.
func IsOnTopic(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range coffeeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
