package extraction

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// PlainTextExtractor decodes text/plain uploads as UTF-8.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(_ context.Context, contents []byte, _ string) (string, error) {
	if !utf8.Valid(contents) {
		return "", fmt.Errorf("text file is not valid UTF-8")
	}
	return string(contents), nil
}
