package mapper

import (
	"encoding/json"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type documentMetadata struct {
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var failedStage *entity.PipelineStage
	if d.FailedStage != nil {
		s := entity.PipelineStage(*d.FailedStage)
		failedStage = &s
	}

	var meta documentMetadata
	if len(d.Metadata) > 0 {
		_ = json.Unmarshal(d.Metadata, &meta)
	}

	return &entity.Document{
		Id:              d.Id,
		FileName:        d.FileName,
		Status:          entity.DocumentStatus(d.Status),
		FailedStage:     failedStage,
		ErrorMessage:    d.ErrorMessage,
		ChunksTotal:     d.ChunksTotal,
		ChunksProcessed: d.ChunksProcessed,
		ContentType:     meta.ContentType,
		SizeBytes:       meta.SizeBytes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func (m *DocumentMapper) ToModel(e *entity.Document) *model.Document {
	if e == nil {
		return nil
	}

	var failedStage *string
	if e.FailedStage != nil {
		s := string(*e.FailedStage)
		failedStage = &s
	}

	metaJson, _ := json.Marshal(documentMetadata{
		ContentType: e.ContentType,
		SizeBytes:   e.SizeBytes,
	})

	return &model.Document{
		Id:              e.Id,
		FileName:        e.FileName,
		Status:          string(e.Status),
		FailedStage:     failedStage,
		ErrorMessage:    e.ErrorMessage,
		ChunksTotal:     e.ChunksTotal,
		ChunksProcessed: e.ChunksProcessed,
		Metadata:        metaJson,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func (m *DocumentMapper) ToStatusProjection(d *model.Document) *entity.DocumentStatusProjection {
	if d == nil {
		return nil
	}

	var failedStage *entity.PipelineStage
	if d.FailedStage != nil {
		s := entity.PipelineStage(*d.FailedStage)
		failedStage = &s
	}

	return &entity.DocumentStatusProjection{
		DocumentId:      d.Id,
		Status:          entity.DocumentStatus(d.Status),
		FailedStage:     failedStage,
		ErrorMessage:    d.ErrorMessage,
		ChunksTotal:     d.ChunksTotal,
		ChunksProcessed: d.ChunksProcessed,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(c *model.DocumentChunk) *entity.DocumentChunk {
	if c == nil {
		return nil
	}
	return &entity.DocumentChunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkText:  c.ChunkText,
		Embedding:  c.Embedding.Slice(),
		CreatedAt:  c.CreatedAt,
	}
}

func (m *DocumentChunkMapper) ToModel(e *entity.DocumentChunk) *model.DocumentChunk {
	if e == nil {
		return nil
	}
	return &model.DocumentChunk{
		Id:         e.Id,
		DocumentId: e.DocumentId,
		ChunkText:  e.ChunkText,
		Embedding:  pgvector.NewVector(e.Embedding),
		CreatedAt:  e.CreatedAt,
	}
}
