package service

import (
	"context"
	"sync"
	"testing"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps fakeStore so tests can observe how often the status
// read actually reaches storage.
type countingStore struct {
	*fakeStore

	mu          sync.Mutex
	statusCalls int
}

func (c *countingStore) GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	c.mu.Lock()
	c.statusCalls++
	c.mu.Unlock()
	return c.fakeStore.GetDocumentStatus(ctx, documentId)
}

func (c *countingStore) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCalls
}

func seedStatusDocument(store *fakeStore, status entity.DocumentStatus) uuid.UUID {
	id := uuid.New()
	store.documents[id] = &entity.Document{
		Id:       id,
		FileName: "report.txt",
		Status:   status,
	}
	return id
}

func TestGetStatusServesSecondPollFromCache(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	docId := seedStatusDocument(store.fakeStore, entity.StatusCompleted)

	svc := NewDocumentService(store, logger.NopLogger{})

	first, err := svc.GetStatus(context.Background(), docId)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, first.Status)
	assert.Equal(t, 1, store.calls())

	second, err := svc.GetStatus(context.Background(), docId)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls(), "second poll must not reach the store")
}

func TestGetStatusCachesInFlightStatus(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	docId := seedStatusDocument(store.fakeStore, entity.StatusExtracting)

	svc := NewDocumentService(store, logger.NopLogger{})

	_, err := svc.GetStatus(context.Background(), docId)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), docId)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls())
}

func TestGetStatusDoesNotCacheMisses(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	svc := NewDocumentService(store, logger.NopLogger{})

	missing := uuid.New()
	_, err := svc.GetStatus(context.Background(), missing)
	require.ErrorIs(t, err, apperror.ErrDocumentNotFound)

	// The document shows up later; the earlier miss must not shadow it.
	store.fakeStore.mu.Lock()
	store.fakeStore.documents[missing] = &entity.Document{Id: missing, Status: entity.StatusUploaded}
	store.fakeStore.mu.Unlock()

	projection, err := svc.GetStatus(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusUploaded, projection.Status)
	assert.Equal(t, 2, store.calls())
}

func TestGetPassesThroughNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewDocumentService(store, logger.NopLogger{})

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)
}
