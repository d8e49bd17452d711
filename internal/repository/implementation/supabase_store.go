package implementation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"

	"github.com/google/uuid"
)

// SupabaseStore is the production backend, speaking PostgREST over plain
// HTTP. There is no multi-statement transaction: every call is an
// independent request, and "atomic" document creation is a compensating
// sequence (create, store, mark completed) with a best-effort undo. The
// failure path can leave a short window where the document row exists
// before it is marked failed and its chunks are deleted.
//
// FindSimilarChunks delegates to the match_chunks RPC, which returns a
// similarity score: higher is closer. This is the opposite direction of the
// Postgres backend's distance value.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	logger     logger.ILogger
}

func NewSupabaseStore(baseURL, serviceKey string, log logger.ILogger) contract.DocumentStore {
	return &SupabaseStore{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

// --- wire types ---

type supabaseDocumentRow struct {
	Id              uuid.UUID             `json:"id,omitempty"`
	FileName        string                `json:"file_name"`
	Status          string                `json:"status"`
	FailedStage     *string               `json:"failed_stage,omitempty"`
	ErrorMessage    *string               `json:"error_message,omitempty"`
	ChunksTotal     int                   `json:"chunks_total"`
	ChunksProcessed int                   `json:"chunks_processed"`
	Metadata        *supabaseDocumentMeta `json:"metadata,omitempty"`
	CreatedAt       string                `json:"created_at,omitempty"`
	UpdatedAt       string                `json:"updated_at,omitempty"`
}

type supabaseDocumentMeta struct {
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

type supabaseChunkRow struct {
	Id         uuid.UUID `json:"id,omitempty"`
	DocumentId uuid.UUID `json:"document_id"`
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"embedding"`
	CreatedAt  string    `json:"created_at,omitempty"`
}

type supabaseMatchRow struct {
	Id         uuid.UUID `json:"id"`
	DocumentId uuid.UUID `json:"document_id"`
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	Similarity *float64  `json:"similarity,omitempty"`
}

func (s *SupabaseStore) CreateDocument(ctx context.Context, doc entity.NewDocument) (uuid.UUID, error) {
	payload := []supabaseDocumentRow{{
		FileName:        doc.FileName,
		Status:          string(entity.StatusUploaded),
		ChunksTotal:     0,
		ChunksProcessed: 0,
		Metadata: &supabaseDocumentMeta{
			ContentType: doc.ContentType,
			SizeBytes:   doc.SizeBytes,
		},
	}}

	body, err := s.doRequest(ctx, http.MethodPost, "/rest/v1/documents", nil, payload, "return=representation")
	if err != nil {
		return uuid.Nil, err
	}

	var rows []supabaseDocumentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return uuid.Nil, fmt.Errorf("decode create document response: %w", err)
	}
	if len(rows) == 0 {
		return uuid.Nil, fmt.Errorf("create document returned no rows")
	}

	s.logger.Info("supabase_store", "Created document", map[string]interface{}{
		"document_id": rows[0].Id,
		"file_name":   doc.FileName,
	})
	return rows[0].Id, nil
}

func (s *SupabaseStore) StoreChunksWithEmbeddings(ctx context.Context, documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]uuid.UUID, error) {
	if len(chunks) == 0 {
		return []uuid.UUID{}, nil
	}

	payload := make([]supabaseChunkRow, len(chunks))
	for i, chunk := range chunks {
		payload[i] = supabaseChunkRow{
			DocumentId: documentId,
			ChunkText:  chunk.Text,
			Embedding:  chunk.Embedding,
		}
	}

	body, err := s.doRequest(ctx, http.MethodPost, "/rest/v1/document_chunks", nil, payload, "return=representation")
	if err != nil {
		return nil, err
	}

	var rows []supabaseChunkRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode store chunks response: %w", err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.Id
	}

	s.logger.Info("supabase_store", "Inserted chunks", map[string]interface{}{
		"document_id": documentId,
		"count":       len(ids),
	})
	return ids, nil
}

func (s *SupabaseStore) GetDocument(ctx context.Context, documentId uuid.UUID) (*entity.Document, error) {
	row, err := s.fetchDocumentRow(ctx, documentId)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		Id:              row.Id,
		FileName:        row.FileName,
		Status:          entity.DocumentStatus(row.Status),
		ErrorMessage:    row.ErrorMessage,
		ChunksTotal:     row.ChunksTotal,
		ChunksProcessed: row.ChunksProcessed,
		CreatedAt:       parseSupabaseTime(row.CreatedAt),
		UpdatedAt:       parseSupabaseTime(row.UpdatedAt),
	}
	if row.FailedStage != nil {
		stage := entity.PipelineStage(*row.FailedStage)
		doc.FailedStage = &stage
	}
	if row.Metadata != nil {
		doc.ContentType = row.Metadata.ContentType
		doc.SizeBytes = row.Metadata.SizeBytes
	}
	return doc, nil
}

// CreateDocumentWithChunksAtomic emulates atomicity through compensation:
// create document, store chunks, mark completed. If chunk storage fails, any
// stored chunks are deleted and the document is marked failed at stage
// "storing". Failures of the compensation itself are logged and swallowed so
// the original error is always what the caller sees.
func (s *SupabaseStore) CreateDocumentWithChunksAtomic(ctx context.Context, doc entity.NewDocument, chunks []entity.ChunkWithEmbedding) (uuid.UUID, []uuid.UUID, error) {
	docId, err := s.CreateDocument(ctx, doc)
	if err != nil {
		return uuid.Nil, nil, err
	}

	chunkIds, err := s.StoreChunksWithEmbeddings(ctx, docId, chunks)
	if err != nil {
		s.compensateFailedUpload(ctx, docId, err)
		return uuid.Nil, nil, err
	}

	total := len(chunks)
	if markErr := s.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:          entity.StatusCompleted,
		ChunksTotal:     &total,
		ChunksProcessed: &total,
	}); markErr != nil {
		s.compensateFailedUpload(ctx, docId, markErr)
		return uuid.Nil, nil, markErr
	}

	s.logger.Info("supabase_store", "Compensated upload completed", map[string]interface{}{
		"document_id": docId,
		"chunks":      len(chunkIds),
	})
	return docId, chunkIds, nil
}

func (s *SupabaseStore) compensateFailedUpload(ctx context.Context, docId uuid.UUID, cause error) {
	if delErr := s.DeleteDocumentChunks(ctx, docId); delErr != nil {
		s.logger.Error("supabase_store", "Compensating chunk delete failed", map[string]interface{}{
			"document_id": docId,
			"error":       delErr.Error(),
		})
	}

	stage := entity.StageStoring
	msg := apperror.Truncate(cause.Error())
	if markErr := s.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:       entity.StatusFailed,
		FailedStage:  &stage,
		ErrorMessage: &msg,
	}); markErr != nil {
		s.logger.Error("supabase_store", "Compensating status update failed", map[string]interface{}{
			"document_id": docId,
			"error":       markErr.Error(),
		})
	}
}

// UpdateDocumentStatus issues a blind PATCH: PostgREST affects zero rows for
// an unknown id and that is not an error here, unlike the Postgres backend.
func (s *SupabaseStore) UpdateDocumentStatus(ctx context.Context, documentId uuid.UUID, update contract.StatusUpdate) error {
	fields := map[string]interface{}{
		"status":     string(update.Status),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if update.FailedStage != nil {
		fields["failed_stage"] = string(*update.FailedStage)
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = *update.ErrorMessage
	}
	if update.ChunksTotal != nil {
		fields["chunks_total"] = *update.ChunksTotal
	}
	if update.ChunksProcessed != nil {
		fields["chunks_processed"] = *update.ChunksProcessed
	}

	query := url.Values{"id": {"eq." + documentId.String()}}
	_, err := s.doRequest(ctx, http.MethodPatch, "/rest/v1/documents", query, fields, "return=minimal")
	if err != nil {
		return err
	}

	s.logger.Debug("supabase_store", "Updated document status", map[string]interface{}{
		"document_id": documentId,
		"status":      update.Status,
	})
	return nil
}

func (s *SupabaseStore) GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	row, err := s.fetchDocumentRow(ctx, documentId)
	if err != nil {
		return nil, err
	}

	projection := &entity.DocumentStatusProjection{
		DocumentId:      row.Id,
		Status:          entity.DocumentStatus(row.Status),
		ErrorMessage:    row.ErrorMessage,
		ChunksTotal:     row.ChunksTotal,
		ChunksProcessed: row.ChunksProcessed,
		CreatedAt:       parseSupabaseTime(row.CreatedAt),
		UpdatedAt:       parseSupabaseTime(row.UpdatedAt),
	}
	if row.FailedStage != nil {
		stage := entity.PipelineStage(*row.FailedStage)
		projection.FailedStage = &stage
	}
	return projection, nil
}

func (s *SupabaseStore) DeleteDocumentChunks(ctx context.Context, documentId uuid.UUID) error {
	query := url.Values{"document_id": {"eq." + documentId.String()}}
	if _, err := s.doRequest(ctx, http.MethodDelete, "/rest/v1/document_chunks", query, nil, "return=minimal"); err != nil {
		return err
	}
	s.logger.Info("supabase_store", "Deleted chunks", map[string]interface{}{
		"document_id": documentId,
	})
	return nil
}

func (s *SupabaseStore) FindSimilarChunks(ctx context.Context, documentId uuid.UUID, queryEmbedding []float32, matchCount int) ([]entity.ChunkMatch, error) {
	if matchCount <= 0 {
		matchCount = 5
	}

	payload := map[string]interface{}{
		"query_embedding":    queryEmbedding,
		"match_count":        matchCount,
		"filter_document_id": documentId,
	}

	body, err := s.doRequest(ctx, http.MethodPost, "/rest/v1/rpc/match_chunks", nil, payload, "")
	if err != nil {
		return nil, err
	}

	var rows []supabaseMatchRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode match_chunks response: %w", err)
	}

	matches := make([]entity.ChunkMatch, len(rows))
	for i, row := range rows {
		match := entity.ChunkMatch{
			Id:         row.Id,
			ChunkText:  row.ChunkText,
			DocumentId: row.DocumentId,
			Embedding:  row.Embedding,
			Similarity: row.Similarity, // similarity score, higher is closer
		}
		if row.CreatedAt != "" {
			t := parseSupabaseTime(row.CreatedAt)
			match.CreatedAt = &t
		}
		matches[i] = match
	}

	s.logger.Debug("supabase_store", "Vector search returned chunks", map[string]interface{}{
		"document_id": documentId,
		"count":       len(matches),
	})
	return matches, nil
}

func (s *SupabaseStore) fetchDocumentRow(ctx context.Context, documentId uuid.UUID) (*supabaseDocumentRow, error) {
	query := url.Values{
		"id":     {"eq." + documentId.String()},
		"select": {"*"},
	}
	body, err := s.doRequest(ctx, http.MethodGet, "/rest/v1/documents", query, nil, "")
	if err != nil {
		return nil, err
	}

	var rows []supabaseDocumentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode document response: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperror.ErrDocumentNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseStore) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}, prefer string) ([]byte, error) {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("supabase %s %s: status %d %s, body %s", method, path, res.StatusCode, http.StatusText(res.StatusCode), string(resBody))
	}

	return resBody, nil
}

func parseSupabaseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	// PostgREST may omit the timezone suffix depending on column type.
	if t, err := time.Parse("2006-01-02T15:04:05.999999", value); err == nil {
		return t
	}
	return time.Time{}
}
