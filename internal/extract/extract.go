package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ErrNoText means the document parsed fine but carries no extractable text
// layer (typically a scanned-image PDF). This is a normal user-facing
// outcome, not a parser crash.
var ErrNoText = errors.New("no extractable text in document")

// Text extracts the plain text of a PDF: page texts in order, each trimmed,
// empty pages skipped, joined with a blank line, the whole result trimmed.
// Parser errors are wrapped with context; their detail is for logs only.
func Text(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pdf pages: %w", err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("get pdf page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("build extractor for page %d: %w", i, err)
		}

		pageText, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("extract text from page %d: %w", i, err)
		}

		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		pages = append(pages, pageText)
	}

	result := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if result == "" {
		return "", ErrNoText
	}
	return result, nil
}
