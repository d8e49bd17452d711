package implementation

import (
	"context"
	"errors"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/mapper"
	"doc-qa-be/internal/model"
	"doc-qa-be/internal/pkg/apperror"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore is the development backend: Postgres with pgvector through
// GORM. CreateDocumentWithChunksAtomic runs in a native transaction, so a
// failed upload leaves no document and no chunks behind.
//
// FindSimilarChunks reports Similarity as the cosine distance produced by
// the `<=>` operator: lower is closer.
type PostgresStore struct {
	db          *gorm.DB
	logger      logger.ILogger
	docMapper   *mapper.DocumentMapper
	chunkMapper *mapper.DocumentChunkMapper
}

func NewPostgresStore(db *gorm.DB, log logger.ILogger) contract.DocumentStore {
	return &PostgresStore{
		db:          db,
		logger:      log,
		docMapper:   mapper.NewDocumentMapper(),
		chunkMapper: mapper.NewDocumentChunkMapper(),
	}
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc entity.NewDocument) (uuid.UUID, error) {
	row := s.docMapper.ToModel(&entity.Document{
		Id:          uuid.New(),
		FileName:    doc.FileName,
		Status:      entity.StatusUploaded,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
	})
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("postgres_store", "Created document", map[string]interface{}{
		"document_id": row.Id,
		"file_name":   doc.FileName,
	})
	return row.Id, nil
}

func (s *PostgresStore) StoreChunksWithEmbeddings(ctx context.Context, documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]uuid.UUID, error) {
	rows, ids := buildChunkRows(documentId, chunks)
	if len(rows) == 0 {
		return ids, nil
	}

	if err := s.db.WithContext(ctx).Create(rows).Error; err != nil {
		return nil, err
	}

	s.logger.Info("postgres_store", "Inserted chunks", map[string]interface{}{
		"document_id": documentId,
		"count":       len(ids),
	})
	return ids, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentId uuid.UUID) (*entity.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", documentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrDocumentNotFound
		}
		return nil, err
	}
	return s.docMapper.ToEntity(&doc), nil
}

func (s *PostgresStore) CreateDocumentWithChunksAtomic(ctx context.Context, newDoc entity.NewDocument, chunks []entity.ChunkWithEmbedding) (uuid.UUID, []uuid.UUID, error) {
	docId := uuid.New()
	var chunkIds []uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc := s.docMapper.ToModel(&entity.Document{
			Id:              docId,
			FileName:        newDoc.FileName,
			Status:          entity.StatusCompleted,
			ChunksTotal:     len(chunks),
			ChunksProcessed: len(chunks),
			ContentType:     newDoc.ContentType,
			SizeBytes:       newDoc.SizeBytes,
		})
		if err := tx.Create(doc).Error; err != nil {
			return err
		}

		rows, ids := buildChunkRows(docId, chunks)
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		chunkIds = ids
		return nil
	})
	if err != nil {
		s.logger.Error("postgres_store", "Atomic upload failed, transaction rolled back", map[string]interface{}{
			"file_name": newDoc.FileName,
			"error":     err.Error(),
		})
		return uuid.Nil, nil, err
	}

	s.logger.Info("postgres_store", "Atomic upload committed", map[string]interface{}{
		"document_id": docId,
		"chunks":      len(chunkIds),
	})
	return docId, chunkIds, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentId uuid.UUID, update contract.StatusUpdate) error {
	fields := map[string]interface{}{
		"status":     string(update.Status),
		"updated_at": time.Now(),
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

	res := s.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", documentId).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrDocumentNotFound
	}

	s.logger.Debug("postgres_store", "Updated document status", map[string]interface{}{
		"document_id": documentId,
		"status":      update.Status,
	})
	return nil
}

func (s *PostgresStore) GetDocumentStatus(ctx context.Context, documentId uuid.UUID) (*entity.DocumentStatusProjection, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", documentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrDocumentNotFound
		}
		return nil, err
	}
	return s.docMapper.ToStatusProjection(&doc), nil
}

func (s *PostgresStore) DeleteDocumentChunks(ctx context.Context, documentId uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.DocumentChunk{}).Error
	if err != nil {
		return err
	}
	s.logger.Info("postgres_store", "Deleted chunks", map[string]interface{}{
		"document_id": documentId,
	})
	return nil
}

func (s *PostgresStore) FindSimilarChunks(ctx context.Context, documentId uuid.UUID, queryEmbedding []float32, matchCount int) ([]entity.ChunkMatch, error) {
	if matchCount <= 0 {
		matchCount = 5
	}

	queryVector := pgvector.NewVector(queryEmbedding)

	type scoredChunk struct {
		model.DocumentChunk
		Distance float64
	}
	var rows []scoredChunk

	err := s.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, embedding <=> ? as distance", queryVector).
		Where("document_id = ?", documentId).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{queryVector}}}).
		Limit(matchCount).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]entity.ChunkMatch, len(rows))
	for i, row := range rows {
		distance := row.Distance
		createdAt := row.CreatedAt
		matches[i] = entity.ChunkMatch{
			Id:         row.Id,
			ChunkText:  row.ChunkText,
			DocumentId: row.DocumentId,
			Embedding:  row.Embedding.Slice(),
			CreatedAt:  &createdAt,
			Similarity: &distance, // cosine distance, lower is closer
		}
	}

	s.logger.Debug("postgres_store", "Vector search returned chunks", map[string]interface{}{
		"document_id": documentId,
		"count":       len(matches),
	})
	return matches, nil
}

func buildChunkRows(documentId uuid.UUID, chunks []entity.ChunkWithEmbedding) ([]*model.DocumentChunk, []uuid.UUID) {
	rows := make([]*model.DocumentChunk, len(chunks))
	ids := make([]uuid.UUID, len(chunks))
	for i, chunk := range chunks {
		id := uuid.New()
		ids[i] = id
		rows[i] = &model.DocumentChunk{
			Id:         id,
			DocumentId: documentId,
			ChunkText:  chunk.Text,
			Embedding:  pgvector.NewVector(chunk.Embedding),
		}
	}
	return rows, ids
}
