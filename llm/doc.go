// Package llm defines the chat-completion provider contract and an
// OpenAI-compatible HTTP implementation.
//
// Hosted endpoints that speak the OpenAI Chat Completions format (Groq,
// OpenAI, DeepSeek, and most self-hosted gateways) are all served by
// [OpenAICompatProvider]; only the base URL, API key, and model differ.
// Transport failures are mapped to structured *types.Error values so
// callers can distinguish transient (retryable) from fatal failures.
package llm
