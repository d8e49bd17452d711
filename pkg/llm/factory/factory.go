package factory

import (
	"fmt"

	"doc-qa-be/pkg/llm"
	"doc-qa-be/pkg/llm/gemini"
	"doc-qa-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured answer-generation backend.
func NewLLMProvider(provider, model, ollamaBaseURL, geminiAPIKey string) (llm.LLMProvider, error) {
	switch provider {
	case "ollama":
		return ollama.NewOllamaProvider(ollamaBaseURL, model), nil
	case "gemini":
		return gemini.NewGeminiProvider(geminiAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
