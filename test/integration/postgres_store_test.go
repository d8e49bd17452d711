package integration

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/implementation"
	"doc-qa-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDimension() int {
	if v, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMENSION")); err == nil && v > 0 {
		return v
	}
	return 3072
}

func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func setupPostgresStore(t *testing.T) (contract.DocumentStore, *gorm.DB) {
	t.Helper()

	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	return implementation.NewPostgresStore(gormDB, logger.NopLogger{}), gormDB
}

func cleanupDocument(t *testing.T, db *gorm.DB, docId uuid.UUID) {
	t.Helper()
	db.Exec("DELETE FROM document_chunks WHERE document_id = ?", docId)
	db.Exec("DELETE FROM documents WHERE id = ?", docId)
}

func TestPostgresDocumentLifecycle(t *testing.T) {
	store, db := setupPostgresStore(t)
	ctx := context.Background()
	dim := testDimension()

	docId, err := store.CreateDocument(ctx, entity.NewDocument{FileName: "integration-lifecycle.pdf", ContentType: "application/pdf", SizeBytes: 2048})
	require.NoError(t, err)
	defer cleanupDocument(t, db, docId)

	doc, err := store.GetDocument(ctx, docId)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusUploaded, doc.Status)
	assert.Zero(t, doc.ChunksTotal)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(2048), doc.SizeBytes)

	// Walk the pipeline statuses the way the ingestion service does.
	total := 2
	zero := 0
	require.NoError(t, store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{Status: entity.StatusExtracting}))
	require.NoError(t, store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:          entity.StatusEmbedding,
		ChunksTotal:     &total,
		ChunksProcessed: &zero,
	}))

	chunkIds, err := store.StoreChunksWithEmbeddings(ctx, docId, []entity.ChunkWithEmbedding{
		{Text: "first chunk", Embedding: unitVector(dim, 0)},
		{Text: "second chunk", Embedding: unitVector(dim, 1)},
	})
	require.NoError(t, err)
	require.Len(t, chunkIds, 2)

	require.NoError(t, store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:          entity.StatusCompleted,
		ChunksProcessed: &total,
	}))

	status, err := store.GetDocumentStatus(ctx, docId)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, status.Status)
	assert.Equal(t, 2, status.ChunksTotal)
	assert.Equal(t, 2, status.ChunksProcessed)
	assert.Nil(t, status.FailedStage)

	// Similarity search orders by cosine distance, closest first.
	matches, err := store.FindSimilarChunks(ctx, docId, unitVector(dim, 1), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "second chunk", matches[0].ChunkText)
	require.NotNil(t, matches[0].Similarity)
	require.NotNil(t, matches[1].Similarity)
	assert.Less(t, *matches[0].Similarity, *matches[1].Similarity)

	// Deleting chunks is idempotent.
	require.NoError(t, store.DeleteDocumentChunks(ctx, docId))
	require.NoError(t, store.DeleteDocumentChunks(ctx, docId))

	matches, err = store.FindSimilarChunks(ctx, docId, unitVector(dim, 0), 2)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPostgresAtomicCreateRollsBackOnBadChunk(t *testing.T) {
	store, db := setupPostgresStore(t)
	ctx := context.Background()
	dim := testDimension()

	bad := []float32{0.1, 0.2} // rejected by the vector column

	// A wrong-dimension chunk anywhere in the batch must roll back the
	// whole transaction, whether it fails before or after good inserts.
	tests := []struct {
		name   string
		chunks []entity.ChunkWithEmbedding
	}{
		{
			name: "first chunk bad",
			chunks: []entity.ChunkWithEmbedding{
				{Text: "bad chunk", Embedding: bad},
				{Text: "good chunk", Embedding: unitVector(dim, 0)},
			},
		},
		{
			name: "middle chunk bad",
			chunks: []entity.ChunkWithEmbedding{
				{Text: "good chunk", Embedding: unitVector(dim, 0)},
				{Text: "bad chunk", Embedding: bad},
				{Text: "good chunk", Embedding: unitVector(dim, 1)},
			},
		},
		{
			name: "last chunk bad",
			chunks: []entity.ChunkWithEmbedding{
				{Text: "good chunk", Embedding: unitVector(dim, 0)},
				{Text: "bad chunk", Embedding: bad},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before int64
			require.NoError(t, db.Table("documents").Count(&before).Error)

			_, _, err := store.CreateDocumentWithChunksAtomic(ctx, entity.NewDocument{FileName: "integration-rollback.pdf"}, tt.chunks)
			require.Error(t, err)

			var after int64
			require.NoError(t, db.Table("documents").Count(&after).Error)
			assert.Equal(t, before, after)

			var orphaned int64
			require.NoError(t, db.Table("document_chunks").Where("chunk_text = ?", "good chunk").Count(&orphaned).Error)
			assert.Zero(t, orphaned)
		})
	}
}

func TestPostgresMissingDocumentBehavior(t *testing.T) {
	store, _ := setupPostgresStore(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := store.GetDocument(ctx, missing)
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)

	_, err = store.GetDocumentStatus(ctx, missing)
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)

	// Unlike the Supabase backend, the Postgres backend reports a missing id
	// on status updates.
	err = store.UpdateDocumentStatus(ctx, missing, contract.StatusUpdate{Status: entity.StatusExtracting})
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)

	// Deleting chunks of a missing document is still a no-op.
	assert.NoError(t, store.DeleteDocumentChunks(ctx, missing))
}
