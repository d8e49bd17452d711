package apperror

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"doc-qa-be/internal/entity"

	"github.com/google/uuid"
)

const (
	CodeInvalidFileType        = "invalid_file_type"
	CodeEmptyFile              = "empty_file"
	CodeFileTooLarge           = "file_too_large"
	CodeNoExtractableText      = "no_extractable_text"
	CodeNoChunksGenerated      = "no_chunks_generated"
	CodeEmbeddingCountMismatch = "embedding_count_mismatch"
	CodeStorageFailed          = "storage_failed"
	CodeDocumentNotFound       = "document_not_found"
	CodeInvalidBatchRequest    = "invalid_batch_request"
	CodeInternal               = "internal_error"
)

// maxErrorMessageLen bounds what gets persisted into documents.error_message.
const maxErrorMessageLen = 500

// PipelineError is the single failure shape the upload pipeline surfaces:
// a machine-readable code, the stage that failed, a human message, and the
// document id when one was already created. Validation failures have no id.
type PipelineError struct {
	Code       string
	Stage      entity.PipelineStage
	Message    string
	DocumentId *uuid.UUID
	Err        error
}

func (e *PipelineError) Error() string {
	if e.DocumentId != nil {
		return fmt.Sprintf("%s at stage %s for document %s: %s", e.Code, e.Stage, e.DocumentId, e.Message)
	}
	return fmt.Sprintf("%s at stage %s: %s", e.Code, e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func New(code string, stage entity.PipelineStage, message string) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: message}
}

func Wrap(code string, stage entity.PipelineStage, err error) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: err.Error(), Err: err}
}

func (e *PipelineError) WithDocument(id uuid.UUID) *PipelineError {
	e.DocumentId = &id
	return e
}

// TruncatedMessage is what gets written to the document row.
func (e *PipelineError) TruncatedMessage() string {
	return Truncate(e.Message)
}

// Truncate caps persisted messages without splitting a multi-byte rune.
func Truncate(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// AsPipelineError unwraps err into a PipelineError, or nil.
func AsPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// HTTPStatus maps an error code to the response status the routes use.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidFileType, CodeEmptyFile:
		return 400
	case CodeFileTooLarge:
		return 413
	case CodeNoExtractableText, CodeNoChunksGenerated, CodeEmbeddingCountMismatch, CodeInvalidBatchRequest:
		return 422
	case CodeDocumentNotFound:
		return 404
	default:
		return 500
	}
}

// ErrDocumentNotFound is returned by stores when a document id does not
// exist. It reads as permanent to the retry classifier.
var ErrDocumentNotFound = errors.New("document not found")
