package repository

import (
	"context"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/pkg/retry"

	"github.com/google/uuid"
)

// Facade is the only way the services reach the document store: every call
// goes through the retry executor. Heavy calls (create, store, search) use
// the standard base delay; bookkeeping calls (status update/read, chunk
// delete) use the fast one.
type Facade struct {
	provider *Provider
	executor *retry.Executor
	heavy    retry.Policy
	fast     retry.Policy
}

var _ contract.DocumentStore = (*Facade)(nil)

func NewFacade(provider *Provider, cfg config.RetryConfig, log logger.ILogger) *Facade {
	return &Facade{
		provider: provider,
		executor: retry.NewExecutor(log),
		heavy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			Backoff:     cfg.Backoff,
		},
		fast: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.FastBaseDelay,
			Backoff:     cfg.Backoff,
		},
	}
}

func (f *Facade) CreateDocument(ctx context.Context, doc entity.NewDocument) (uuid.UUID, error) {
	store, err := f.provider.Store()
	if err != nil {
		return uuid.Nil, err
	}
	return retry.DoValue(ctx, f.executor, "create_document", f.heavy, func(ctx context.Context) (uuid.UUID, error) {
		return store.CreateDocument(ctx, doc)
	})
}

func (f *Facade) StoreChunksWithEmbeddings(ctx context.Context, documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]uuid.UUID, error) {
	store, err := f.provider.Store()
	if err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, f.executor, "store_chunks_with_embeddings", f.heavy, func(ctx context.Context) ([]uuid.UUID, error) {
		return store.StoreChunksWithEmbeddings(ctx, documentId, chunks)
	})
}

func (f *Facade) GetDocument(ctx context.Context, documentId uuid.UUID) (*entity.Document, error) {
	store, err := f.provider.Store()
	if err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, f.executor, "get_document", f.heavy, func(ctx context.Context) (*entity.Document, error) {
		return store.GetDocument(ctx, documentId)
	})
}

func (f *Facade) CreateDocumentWithChunksAtomic(ctx context.Context, doc entity.NewDocument, chunks []entity.ChunkWithEmbedding) (uuid.UUID, []uuid.UUID, error) {
	store, err := f.provider.Store()
	if err != nil {
		return uuid.Nil, nil, err
	}
	type result struct {
		docId    uuid.UUID
		chunkIds []uuid.UUID
	}
	res, err := retry.DoValue(ctx, f.executor, "create_document_with_chunks_atomic", f.heavy, func(ctx context.Context) (result, error) {
		docId, chunkIds, err := store.CreateDocumentWithChunksAtomic(ctx, doc, chunks)
		return result{docId: docId, chunkIds: chunkIds}, err
	})
	return res.docId, res.chunkIds, err
}

func (f *Facade) UpdateDocumentStatus(ctx context.Context, documentId uuid.UUID, update contract.StatusUpdate) error {
	store, err := f.provider.Store()
	if err != nil {
		return err
	}
	return f.executor.Do(ctx, "update_document_status", f.fast, func(ctx context.Context) error {
		return store.UpdateDocumentStatus(ctx, documentId, update)
	})
}

func (f *Facade) GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	store, err := f.provider.Store()
	if err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, f.executor, "get_document_status", f.fast, func(ctx context.Context) (*entity.DocumentStatusProjection, error) {
		return store.GetDocumentStatus(ctx, documentId)
	})
}

func (f *Facade) DeleteDocumentChunks(ctx context.Context, documentId uuid.UUID) error {
	store, err := f.provider.Store()
	if err != nil {
		return err
	}
	return f.executor.Do(ctx, "delete_document_chunks", f.fast, func(ctx context.Context) error {
		return store.DeleteDocumentChunks(ctx, documentId)
	})
}

func (f *Facade) FindSimilarChunks(ctx context.Context, documentId uuid.UUID, queryEmbedding []float32, matchCount int) ([]entity.ChunkMatch, error) {
	store, err := f.provider.Store()
	if err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, f.executor, "find_similar_chunks", f.heavy, func(ctx context.Context) ([]entity.ChunkMatch, error) {
		return store.FindSimilarChunks(ctx, documentId, queryEmbedding, matchCount)
	})
}
