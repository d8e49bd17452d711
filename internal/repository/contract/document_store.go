package contract

import (
	"context"

	"doc-qa-be/internal/entity"

	"github.com/google/uuid"
)

// StatusUpdate is a partial document update: only non-nil fields are written.
// Every update refreshes updated_at.
type StatusUpdate struct {
	Status          entity.DocumentStatus
	FailedStage     *entity.PipelineStage
	ErrorMessage    *string
	ChunksTotal     *int
	ChunksProcessed *int
}

// DocumentStore is the persistence boundary the ingestion pipeline and the
// retrieval path depend on. Two implementations exist with different
// atomicity guarantees:
//
//   - PostgresStore executes CreateDocumentWithChunksAtomic inside a real
//     transaction; on failure nothing is ever visible to readers.
//   - SupabaseStore has no multi-statement transaction and decomposes the
//     same operation into independent REST calls with a best-effort
//     compensating cleanup. Callers must tolerate brief inconsistency
//     windows on its failure path.
type DocumentStore interface {
	// CreateDocument inserts a document in status "uploaded" with zero
	// chunk counts and returns its id.
	CreateDocument(ctx context.Context, doc entity.NewDocument) (uuid.UUID, error)

	// StoreChunksWithEmbeddings appends chunk rows and returns the
	// generated ids in input order.
	StoreChunksWithEmbeddings(ctx context.Context, documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]uuid.UUID, error)

	// GetDocument returns the document or apperror.ErrDocumentNotFound.
	GetDocument(ctx context.Context, documentId uuid.UUID) (*entity.Document, error)

	// CreateDocumentWithChunksAtomic produces a completed document with all
	// chunks written, or (per implementation guarantee) nothing durable.
	CreateDocumentWithChunksAtomic(ctx context.Context, doc entity.NewDocument, chunks []entity.ChunkWithEmbedding) (uuid.UUID, []uuid.UUID, error)

	// UpdateDocumentStatus applies a partial update. The Postgres
	// implementation fails with apperror.ErrDocumentNotFound on a missing
	// id; the Supabase implementation issues a blind PATCH and silently
	// no-ops.
	UpdateDocumentStatus(ctx context.Context, documentId uuid.UUID, update StatusUpdate) error

	// GetDocumentStatus returns the status projection or
	// apperror.ErrDocumentNotFound.
	GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error)

	// DeleteDocumentChunks removes all chunks owned by the document.
	// Deleting zero rows is not an error.
	DeleteDocumentChunks(ctx context.Context, documentId uuid.UUID) error

	// FindSimilarChunks returns up to matchCount chunks of one document
	// ordered by similarity to the query embedding. Similarity direction is
	// backend specific, see entity.ChunkMatch.
	FindSimilarChunks(ctx context.Context, documentId uuid.UUID, queryEmbedding []float32, matchCount int) ([]entity.ChunkMatch, error)
}
