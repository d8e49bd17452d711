package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails each operation a fixed number of times before
// succeeding, counting invocations.
type flakyStore struct {
	failuresLeft int
	failWith     error
	calls        int
}

func (f *flakyStore) tryFail() error {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return f.failWith
	}
	return nil
}

func (f *flakyStore) CreateDocument(ctx context.Context, doc entity.NewDocument) (uuid.UUID, error) {
	if err := f.tryFail(); err != nil {
		return uuid.Nil, err
	}
	return uuid.New(), nil
}

func (f *flakyStore) StoreChunksWithEmbeddings(ctx context.Context, documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]uuid.UUID, error) {
	if err := f.tryFail(); err != nil {
		return nil, err
	}
	return make([]uuid.UUID, len(chunks)), nil
}

func (f *flakyStore) GetDocument(ctx context.Context, documentId uuid.UUID) (*entity.Document, error) {
	if err := f.tryFail(); err != nil {
		return nil, err
	}
	return &entity.Document{Id: documentId}, nil
}

func (f *flakyStore) CreateDocumentWithChunksAtomic(ctx context.Context, doc entity.NewDocument, chunks []entity.ChunkWithEmbedding) (uuid.UUID, []uuid.UUID, error) {
	if err := f.tryFail(); err != nil {
		return uuid.Nil, nil, err
	}
	return uuid.New(), make([]uuid.UUID, len(chunks)), nil
}

func (f *flakyStore) UpdateDocumentStatus(ctx context.Context, documentId uuid.UUID, update contract.StatusUpdate) error {
	return f.tryFail()
}

func (f *flakyStore) GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	if err := f.tryFail(); err != nil {
		return nil, err
	}
	return &entity.DocumentStatusProjection{DocumentId: documentId}, nil
}

func (f *flakyStore) DeleteDocumentChunks(ctx context.Context, documentId uuid.UUID) error {
	return f.tryFail()
}

func (f *flakyStore) FindSimilarChunks(ctx context.Context, documentId uuid.UUID, queryEmbedding []float32, matchCount int) ([]entity.ChunkMatch, error) {
	if err := f.tryFail(); err != nil {
		return nil, err
	}
	return []entity.ChunkMatch{}, nil
}

func newTestFacade(store contract.DocumentStore) *Facade {
	cfg := &config.Config{}
	provider := NewProvider(cfg, logger.NopLogger{})
	provider.SetStore(store)
	return NewFacade(provider, config.RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		FastBaseDelay: time.Millisecond,
		Backoff:       2.0,
	}, logger.NopLogger{})
}

func TestFacadeRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{failuresLeft: 2, failWith: errors.New("connection refused by upstream network")}
	facade := newTestFacade(store)

	id, err := facade.CreateDocument(context.Background(), entity.NewDocument{FileName: "a.pdf"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, 3, store.calls)
}

func TestFacadeFailsFastOnPermanentError(t *testing.T) {
	permanent := errors.New("violates check constraint")
	store := &flakyStore{failuresLeft: 10, failWith: permanent}
	facade := newTestFacade(store)

	_, err := facade.GetDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, store.calls)
}

func TestFacadeDoesNotRetryMissingDocument(t *testing.T) {
	store := &flakyStore{failuresLeft: 10, failWith: apperror.ErrDocumentNotFound}
	facade := newTestFacade(store)

	_, err := facade.GetDocumentStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)
	assert.Equal(t, 1, store.calls)
}

func TestFacadeExhaustsRetryBudget(t *testing.T) {
	transient := errors.New("dial tcp: i/o timeout")
	store := &flakyStore{failuresLeft: 10, failWith: transient}
	facade := newTestFacade(store)

	err := facade.UpdateDocumentStatus(context.Background(), uuid.New(), contract.StatusUpdate{
		Status: entity.StatusExtracting,
	})
	assert.ErrorIs(t, err, transient)
	// MaxAttempts counts total invocations, not retries.
	assert.Equal(t, 3, store.calls)
}

func TestFacadeRetriesSimilaritySearch(t *testing.T) {
	store := &flakyStore{failuresLeft: 1, failWith: errors.New("server is temporarily unavailable")}
	facade := newTestFacade(store)

	matches, err := facade.FindSimilarChunks(context.Background(), uuid.New(), []float32{0.1}, 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Equal(t, 2, store.calls)
}
