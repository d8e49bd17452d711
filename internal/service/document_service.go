package service

import (
	"context"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type IDocumentService interface {
	GetStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error)
	Get(ctx context.Context, documentId uuid.UUID) (*entity.Document, error)
}

// inflightStatusTTL bounds how stale a polled in-flight status may be.
// Terminal statuses are immutable and cache at the default expiration.
const inflightStatusTTL = 2 * time.Second

type documentService struct {
	store       contract.DocumentStore
	statusCache *cache.Cache
	logger      logger.ILogger
}

func NewDocumentService(store contract.DocumentStore, log logger.ILogger) IDocumentService {
	return &documentService{
		store:       store,
		statusCache: cache.New(5*time.Minute, 10*time.Minute),
		logger:      log,
	}
}

func (ds *documentService) GetStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	key := documentId.String()
	if cached, found := ds.statusCache.Get(key); found {
		return cached.(*entity.DocumentStatusProjection), nil
	}

	projection, err := ds.store.GetDocumentStatus(ctx, documentId)
	if err != nil {
		return nil, err
	}

	ttl := inflightStatusTTL
	if projection.Status == entity.StatusCompleted || projection.Status == entity.StatusFailed {
		ttl = cache.DefaultExpiration
	}
	ds.statusCache.Set(key, projection, ttl)

	return projection, nil
}

func (ds *documentService) Get(ctx context.Context, documentId uuid.UUID) (*entity.Document, error) {
	return ds.store.GetDocument(ctx, documentId)
}
