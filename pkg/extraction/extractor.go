package extraction

import (
	"context"
	"fmt"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// TextExtractor turns raw uploaded bytes into plain text. The ingestion
// pipeline treats it as an external collaborator and only reacts to its
// output (empty text is a stage failure there, not here).
type TextExtractor interface {
	Extract(ctx context.Context, contents []byte, contentType string) (string, error)
}

// Supported reports whether an extractor exists for the content type.
func Supported(contentType string) bool {
	switch contentType {
	case ContentTypePDF, ContentTypeText:
		return true
	}
	return false
}

// CompositeExtractor routes to the right extractor by content type.
type CompositeExtractor struct {
	pdf  *PDFExtractor
	text *PlainTextExtractor
}

func NewCompositeExtractor() *CompositeExtractor {
	return &CompositeExtractor{
		pdf:  NewPDFExtractor(),
		text: NewPlainTextExtractor(),
	}
}

func (e *CompositeExtractor) Extract(ctx context.Context, contents []byte, contentType string) (string, error) {
	switch contentType {
	case ContentTypePDF:
		return e.pdf.Extract(ctx, contents, contentType)
	case ContentTypeText:
		return e.text.Extract(ctx, contents, contentType)
	}
	return "", fmt.Errorf("unsupported content type: %s", contentType)
}
