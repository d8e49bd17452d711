package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusStoring    DocumentStatus = "storing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// PipelineStage names where in the pipeline a failure happened.
type PipelineStage string

const (
	StageValidation PipelineStage = "validation"
	StageExtracting PipelineStage = "extracting"
	StageChunking   PipelineStage = "chunking"
	StageEmbedding  PipelineStage = "embedding"
	StageStoring    PipelineStage = "storing"
)

// NewDocument is the input for creating a document row. ContentType and
// SizeBytes are stored as metadata alongside the row.
type NewDocument struct {
	FileName    string
	ContentType string
	SizeBytes   int64
}

type Document struct {
	Id              uuid.UUID
	FileName        string
	Status          DocumentStatus
	FailedStage     *PipelineStage
	ErrorMessage    *string
	ChunksTotal     int
	ChunksProcessed int
	ContentType     string
	SizeBytes       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DocumentStatusProjection is the read model served by the status polling
// endpoint. Counts are meaningful only once the pipeline reached chunking.
type DocumentStatusProjection struct {
	DocumentId      uuid.UUID      `json:"document_id"`
	Status          DocumentStatus `json:"status"`
	FailedStage     *PipelineStage `json:"failed_stage"`
	ErrorMessage    *string        `json:"error_message"`
	ChunksTotal     int            `json:"chunks_total"`
	ChunksProcessed int            `json:"chunks_processed"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
