package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/extraction"
	"doc-qa-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	EventDocumentCompleted = "DOCUMENT_COMPLETED"
	EventDocumentFailed    = "DOCUMENT_FAILED"
)

type IIngestionService interface {
	Upload(ctx context.Context, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
}

// ingestionService drives an uploaded file through the status machine:
// uploaded -> extracting -> chunking -> embedding -> storing -> completed,
// or -> failed from any intermediate stage. Each transition is persisted
// before the stage's work runs, so the polling endpoint always reports the
// stage currently in flight.
type ingestionService struct {
	store             contract.DocumentStore
	extractor         extraction.TextExtractor
	embeddingProvider embedding.EmbeddingProvider
	publisherService  IPublisherService
	uploadCfg         config.UploadConfig
	logger            logger.ILogger
}

func NewIngestionService(
	store contract.DocumentStore,
	extractor extraction.TextExtractor,
	embeddingProvider embedding.EmbeddingProvider,
	publisherService IPublisherService,
	uploadCfg config.UploadConfig,
	log logger.ILogger,
) IIngestionService {
	return &ingestionService{
		store:             store,
		extractor:         extractor,
		embeddingProvider: embeddingProvider,
		publisherService:  publisherService,
		uploadCfg:         uploadCfg,
		logger:            log,
	}
}

func (is *ingestionService) Upload(ctx context.Context, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	// Validation happens before any row exists, so these failures carry no
	// document id.
	if err := is.validate(req); err != nil {
		return nil, err
	}

	docId, err := is.store.CreateDocument(ctx, entity.NewDocument{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Contents)),
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStorageFailed, entity.StageValidation, err)
	}

	is.logger.Info("ingestion_service", "Document created, starting pipeline", map[string]interface{}{
		"document_id": docId,
		"file_name":   req.FileName,
	})

	chunkCount, err := is.process(ctx, docId, req)
	if err != nil {
		pipeErr := apperror.AsPipelineError(err)
		if pipeErr == nil {
			pipeErr = apperror.Wrap(apperror.CodeInternal, entity.StageStoring, err)
		}
		is.failDocument(ctx, docId, pipeErr)
		is.publishEvent(ctx, dto.DocumentEventMessage{
			Type:        EventDocumentFailed,
			DocumentId:  docId,
			FileName:    req.FileName,
			FailedStage: string(pipeErr.Stage),
			Error:       pipeErr.TruncatedMessage(),
		})
		return nil, pipeErr.WithDocument(docId)
	}

	is.publishEvent(ctx, dto.DocumentEventMessage{
		Type:       EventDocumentCompleted,
		DocumentId: docId,
		FileName:   req.FileName,
		ChunkCount: chunkCount,
	})

	return &dto.UploadDocumentResponse{
		DocumentId:       docId,
		ChunkCount:       chunkCount,
		Status:           string(entity.StatusCompleted),
		StatusLookupPath: fmt.Sprintf("/api/documents/%s/status", docId),
	}, nil
}

func (is *ingestionService) validate(req *dto.UploadDocumentRequest) error {
	if !extraction.Supported(req.ContentType) {
		return apperror.New(apperror.CodeInvalidFileType, entity.StageValidation,
			fmt.Sprintf("unsupported content type: %s", req.ContentType))
	}
	if len(req.Contents) == 0 {
		return apperror.New(apperror.CodeEmptyFile, entity.StageValidation, "uploaded file is empty")
	}
	if int64(len(req.Contents)) > is.uploadCfg.MaxSizeBytes {
		return apperror.New(apperror.CodeFileTooLarge, entity.StageValidation,
			fmt.Sprintf("file size %d exceeds limit of %d bytes", len(req.Contents), is.uploadCfg.MaxSizeBytes))
	}
	return nil
}

func (is *ingestionService) process(ctx context.Context, docId uuid.UUID, req *dto.UploadDocumentRequest) (int, error) {
	if err := is.advance(ctx, docId, entity.StatusExtracting); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageExtracting, err)
	}

	text, err := is.extractor.Extract(ctx, req.Contents, req.ContentType)
	if err != nil {
		return 0, apperror.Wrap(apperror.CodeInternal, entity.StageExtracting, err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, apperror.New(apperror.CodeNoExtractableText, entity.StageExtracting,
			"document contains no extractable text")
	}

	if err := is.advance(ctx, docId, entity.StatusChunking); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageChunking, err)
	}

	chunks := utils.SplitText(text, is.uploadCfg.ChunkSize, is.uploadCfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, apperror.New(apperror.CodeNoChunksGenerated, entity.StageChunking,
			"text splitter produced no chunks")
	}

	total := len(chunks)
	zero := 0
	if err := is.store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:          entity.StatusEmbedding,
		ChunksTotal:     &total,
		ChunksProcessed: &zero,
	}); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageEmbedding, err)
	}

	vectors, err := is.embeddingProvider.GenerateBatch(ctx, chunks)
	if err != nil {
		return 0, apperror.Wrap(apperror.CodeInternal, entity.StageEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return 0, apperror.New(apperror.CodeEmbeddingCountMismatch, entity.StageEmbedding,
			fmt.Sprintf("expected %d embeddings, provider returned %d", len(chunks), len(vectors)))
	}

	if err := is.advance(ctx, docId, entity.StatusStoring); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageStoring, err)
	}

	payload := make([]entity.ChunkWithEmbedding, len(chunks))
	for i, chunk := range chunks {
		payload[i] = entity.ChunkWithEmbedding{Text: chunk, Embedding: vectors[i]}
	}

	if _, err := is.store.StoreChunksWithEmbeddings(ctx, docId, payload); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageStoring, err)
	}

	if err := is.store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:          entity.StatusCompleted,
		ChunksProcessed: &total,
	}); err != nil {
		return 0, apperror.Wrap(apperror.CodeStorageFailed, entity.StageStoring, err)
	}

	is.logger.Info("ingestion_service", "Document processed", map[string]interface{}{
		"document_id": docId,
		"chunks":      total,
	})
	return total, nil
}

func (is *ingestionService) advance(ctx context.Context, docId uuid.UUID, status entity.DocumentStatus) error {
	return is.store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{Status: status})
}

// failDocument records the terminal failed state and removes any chunks a
// partially completed storing stage may have left behind. Both actions are
// best effort: their own failures are logged and the original pipeline
// error is what the caller returns.
func (is *ingestionService) failDocument(ctx context.Context, docId uuid.UUID, cause *apperror.PipelineError) {
	stage := cause.Stage
	msg := cause.TruncatedMessage()
	if err := is.store.UpdateDocumentStatus(ctx, docId, contract.StatusUpdate{
		Status:       entity.StatusFailed,
		FailedStage:  &stage,
		ErrorMessage: &msg,
	}); err != nil {
		is.logger.Error("ingestion_service", "Failed to mark document as failed", map[string]interface{}{
			"document_id": docId,
			"error":       err.Error(),
		})
	}

	if err := is.store.DeleteDocumentChunks(ctx, docId); err != nil {
		is.logger.Error("ingestion_service", "Failed to clean up chunks after pipeline failure", map[string]interface{}{
			"document_id": docId,
			"error":       err.Error(),
		})
	}

	is.logger.Warn("ingestion_service", "Pipeline failed", map[string]interface{}{
		"document_id": docId,
		"stage":       cause.Stage,
		"code":        cause.Code,
	})
}

// publishEvent notifies the in-process event topic about a terminal state.
// Publishing is auxiliary: failures never affect the upload result.
func (is *ingestionService) publishEvent(ctx context.Context, evt dto.DocumentEventMessage) {
	if is.publisherService == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		is.logger.Warn("ingestion_service", "Failed to marshal document event", map[string]interface{}{
			"document_id": evt.DocumentId,
			"error":       err.Error(),
		})
		return
	}
	if err := is.publisherService.Publish(ctx, payload); err != nil {
		is.logger.Warn("ingestion_service", "Failed to publish document event", map[string]interface{}{
			"document_id": evt.DocumentId,
			"type":        evt.Type,
			"error":       err.Error(),
		})
	}
}
