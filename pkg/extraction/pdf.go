package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor pulls text out of PDF bytes using pdfcpu. pdfcpu has no
// direct text-extraction call, so page content streams are dumped to a temp
// directory and the string literals of the text-show operators are harvested
// from them.
type PDFExtractor struct {
	tempDir string
}

func NewPDFExtractor() *PDFExtractor {
	tempDir := filepath.Join(os.TempDir(), "doc-qa-pdf")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		// Fall back to the system temp dir rather than failing every
		// extraction later with an unrelated CreateTemp error.
		tempDir = os.TempDir()
	}
	return &PDFExtractor{tempDir: tempDir}
}

func (e *PDFExtractor) Extract(ctx context.Context, contents []byte, _ string) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "extract_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	tempFile := f.Name()
	defer os.Remove(tempFile)
	if _, err := f.Write(contents); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages_")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = harvestTextOperators(raw)
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := pageTexts[pageNum]
		if text == "" {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// textShowPattern matches the string literals of Tj and TJ operators in a
// decoded content stream.
var textShowPattern = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

func harvestTextOperators(content []byte) string {
	matches := textShowPattern.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, m := range matches {
		builder.WriteString(unescapePDFString(string(m[1])))
		builder.WriteString(" ")
	}
	return strings.TrimSpace(builder.String())
}

func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
	)
	return replacer.Replace(s)
}
