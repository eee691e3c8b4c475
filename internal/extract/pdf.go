package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/shipops/docsearch/internal/document"
)

// pdfExtractor extracts text from PDF files page by page. It is the only
// extractor that populates per-page text, which query-time page location
// depends on.
type pdfExtractor struct{}

func (e *pdfExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", nil, fmt.Errorf("opening pdf: %w", err)
	}

	var parts []string
	var pages []document.PageEntry
	for num := 1; num <= reader.NumPage(); num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		cleaned := CleanText(text)
		if cleaned == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", num, cleaned))
		pages = append(pages, document.PageEntry{Page: num, Text: cleaned})
	}

	return joinParts(parts), pages, nil
}

func joinParts(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
