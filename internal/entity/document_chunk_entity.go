package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is a bounded span of extracted text with its embedding.
// Chunks are immutable once written.
type DocumentChunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	ChunkText  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkWithEmbedding is the pipeline payload handed to storage: the chunk
// text paired with its embedding vector, in chunk order.
type ChunkWithEmbedding struct {
	Text      string
	Embedding []float32
}

// ChunkMatch is the read-only projection returned by similarity search.
//
// The meaning of Similarity is backend specific: the Postgres backend
// reports cosine distance (lower is closer), the Supabase match_chunks RPC
// reports a similarity score (higher is closer). Callers must not compare
// values across backends.
type ChunkMatch struct {
	Id         uuid.UUID  `json:"id"`
	ChunkText  string     `json:"chunk_text"`
	DocumentId uuid.UUID  `json:"document_id"`
	Embedding  []float32  `json:"embedding,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	Similarity *float64   `json:"similarity,omitempty"`
}
