package llm

import "context"

// LLMProvider is the contract for answer generation. The retrieval path
// builds a context string from matched chunks and asks the model to answer
// grounded in it.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
