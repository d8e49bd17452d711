package embedding

import "context"

// EmbeddingProvider generates fixed-dimension embedding vectors. GenerateBatch
// must return exactly one vector per input text, in input order; the
// ingestion pipeline fails the upload if the counts disagree.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
