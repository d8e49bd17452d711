package implementation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRequest keeps what the store actually sent over the wire.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Prefer string
	Body   []byte
}

// postgrestStub is a minimal PostgREST double: route handlers are keyed by
// "METHOD path" and every request is recorded for later assertions.
type postgrestStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newPostgrestStub() *postgrestStub {
	return &postgrestStub{handlers: make(map[string]http.HandlerFunc)}
}

func (p *postgrestStub) handle(method, path string, h http.HandlerFunc) {
	p.handlers[method+" "+path] = h
}

func (p *postgrestStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.requests = append(p.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Prefer: r.Header.Get("Prefer"),
		Body:   body,
	})
	p.mu.Unlock()

	if h, ok := p.handlers[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"no route"}`))
}

func (p *postgrestStub) recorded() []recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recordedRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newStoreWithStub(t *testing.T, stub *postgrestStub) contract.DocumentStore {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	return NewSupabaseStore(server.URL, "service-key-test", logger.NopLogger{})
}

func TestSupabaseCreateDocumentSendsServiceKeyHeaders(t *testing.T) {
	docId := uuid.New()
	stub := newPostgrestStub()

	var gotApiKey, gotAuth string
	stub.handle(http.MethodPost, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		gotApiKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusCreated, []map[string]interface{}{{"id": docId, "file_name": "a.pdf", "status": "uploaded"}})
	})

	store := newStoreWithStub(t, stub)
	id, err := store.CreateDocument(context.Background(), entity.NewDocument{FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: 128})
	require.NoError(t, err)
	assert.Equal(t, docId, id)
	assert.Equal(t, "service-key-test", gotApiKey)
	assert.Equal(t, "Bearer service-key-test", gotAuth)

	reqs := stub.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "return=representation", reqs[0].Prefer)
	assert.Contains(t, string(reqs[0].Body), `"status":"uploaded"`)
	assert.Contains(t, string(reqs[0].Body), `"content_type":"application/pdf"`)
	assert.Contains(t, string(reqs[0].Body), `"size_bytes":128`)
}

func TestSupabaseGetDocumentNotFoundOnEmptyResult(t *testing.T) {
	stub := newPostgrestStub()
	stub.handle(http.MethodGet, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{})
	})

	store := newStoreWithStub(t, stub)
	_, err := store.GetDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)
}

func TestSupabaseUpdateStatusIsBlindPatch(t *testing.T) {
	stub := newPostgrestStub()
	// PostgREST answers 204 whether or not any row matched the filter.
	stub.handle(http.MethodPatch, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	store := newStoreWithStub(t, stub)
	missingId := uuid.New()
	err := store.UpdateDocumentStatus(context.Background(), missingId, contract.StatusUpdate{
		Status: entity.StatusExtracting,
	})
	assert.NoError(t, err)

	reqs := stub.recorded()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Query, "id=eq."+missingId.String())
	assert.Contains(t, string(reqs[0].Body), `"status":"extracting"`)
}

func TestSupabaseDeleteChunksIsIdempotent(t *testing.T) {
	stub := newPostgrestStub()
	stub.handle(http.MethodDelete, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	store := newStoreWithStub(t, stub)
	docId := uuid.New()
	assert.NoError(t, store.DeleteDocumentChunks(context.Background(), docId))
	assert.NoError(t, store.DeleteDocumentChunks(context.Background(), docId))
}

func TestSupabaseNon2xxSurfacesStatusAndBody(t *testing.T) {
	stub := newPostgrestStub()
	stub.handle(http.MethodPost, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "too many clients"})
	})

	store := newStoreWithStub(t, stub)
	_, err := store.CreateDocument(context.Background(), entity.NewDocument{FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: 128})
	require.Error(t, err)
	// Status text and response body both land in the error so the retry
	// classifier can see transient markers.
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "Service Unavailable")
	assert.Contains(t, err.Error(), "too many clients")
}

func TestSupabaseAtomicCreateCompensatesOnChunkFailure(t *testing.T) {
	docId := uuid.New()
	stub := newPostgrestStub()
	stub.handle(http.MethodPost, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, []map[string]interface{}{{"id": docId, "file_name": "a.pdf", "status": "uploaded"}})
	})
	stub.handle(http.MethodPost, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "insert blew up"})
	})
	stub.handle(http.MethodDelete, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	stub.handle(http.MethodPatch, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	store := newStoreWithStub(t, stub)
	_, _, err := store.CreateDocumentWithChunksAtomic(context.Background(), entity.NewDocument{FileName: "a.pdf"}, []entity.ChunkWithEmbedding{
		{Text: "chunk", Embedding: []float32{0.1, 0.2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert blew up")

	// Compensation ran: chunks deleted, document marked failed at storing.
	reqs := stub.recorded()
	require.Len(t, reqs, 4)
	assert.Equal(t, http.MethodDelete, reqs[2].Method)
	assert.Contains(t, reqs[2].Query, "document_id=eq."+docId.String())
	assert.Equal(t, http.MethodPatch, reqs[3].Method)
	assert.Contains(t, string(reqs[3].Body), `"status":"failed"`)
	assert.Contains(t, string(reqs[3].Body), `"failed_stage":"storing"`)
}

func TestSupabaseAtomicCreateSwallowsCompensationFailure(t *testing.T) {
	docId := uuid.New()
	stub := newPostgrestStub()
	stub.handle(http.MethodPost, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, []map[string]interface{}{{"id": docId, "file_name": "a.pdf", "status": "uploaded"}})
	})
	stub.handle(http.MethodPost, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "original failure"})
	})
	// Both compensation calls fail too; the original error must still win.
	stub.handle(http.MethodDelete, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "delete failed"})
	})
	stub.handle(http.MethodPatch, "/rest/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "patch failed"})
	})

	store := newStoreWithStub(t, stub)
	_, _, err := store.CreateDocumentWithChunksAtomic(context.Background(), entity.NewDocument{FileName: "a.pdf"}, []entity.ChunkWithEmbedding{
		{Text: "chunk", Embedding: []float32{0.1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "original failure")
	assert.NotContains(t, err.Error(), "delete failed")
	assert.NotContains(t, err.Error(), "patch failed")
}

func TestSupabaseFindSimilarChunksCallsMatchRPC(t *testing.T) {
	docId := uuid.New()
	chunkId := uuid.New()
	similarity := 0.87

	stub := newPostgrestStub()
	stub.handle(http.MethodPost, "/rest/v1/rpc/match_chunks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": chunkId, "document_id": docId, "chunk_text": "relevant text", "similarity": similarity},
		})
	})

	store := newStoreWithStub(t, stub)
	matches, err := store.FindSimilarChunks(context.Background(), docId, []float32{0.5, 0.5}, 3)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, chunkId, matches[0].Id)
	assert.Equal(t, "relevant text", matches[0].ChunkText)
	require.NotNil(t, matches[0].Similarity)
	assert.InDelta(t, similarity, *matches[0].Similarity, 1e-9)

	reqs := stub.recorded()
	require.Len(t, reqs, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &payload))
	assert.Equal(t, docId.String(), payload["filter_document_id"])
	assert.EqualValues(t, 3, payload["match_count"])
}

func TestSupabaseStoreChunksReturnsIdsInOrder(t *testing.T) {
	docId := uuid.New()
	first, second := uuid.New(), uuid.New()

	stub := newPostgrestStub()
	stub.handle(http.MethodPost, "/rest/v1/document_chunks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, []map[string]interface{}{
			{"id": first, "document_id": docId, "chunk_text": "one"},
			{"id": second, "document_id": docId, "chunk_text": "two"},
		})
	})

	store := newStoreWithStub(t, stub)
	ids, err := store.StoreChunksWithEmbeddings(context.Background(), docId, []entity.ChunkWithEmbedding{
		{Text: "one", Embedding: []float32{0.1}},
		{Text: "two", Embedding: []float32{0.2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
}
