package dto

import (
	"time"

	"github.com/google/uuid"
)

// UploadDocumentRequest carries upload input from the HTTP layer into the
// ingestion pipeline.
type UploadDocumentRequest struct {
	FileName    string
	ContentType string
	Contents    []byte
}

type UploadDocumentResponse struct {
	DocumentId       uuid.UUID `json:"document_id"`
	ChunkCount       int       `json:"chunk_count"`
	Status           string    `json:"status"`
	StatusLookupPath string    `json:"status_lookup_path"`
}

type DocumentResponse struct {
	DocumentId  uuid.UUID `json:"document_id"`
	FileName    string    `json:"file_name"`
	Status      string    `json:"status"`
	ChunksTotal int       `json:"chunks_total"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentEventMessage is published on the in-process event topic when a
// document reaches a terminal state.
type DocumentEventMessage struct {
	Type        string    `json:"type"` // DOCUMENT_COMPLETED | DOCUMENT_FAILED
	DocumentId  uuid.UUID `json:"document_id"`
	FileName    string    `json:"file_name"`
	ChunkCount  int       `json:"chunk_count,omitempty"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
}
