package extract

import "github.com/shipops/docsearch/internal/document"

// imageExtractor handles image formats. Images carry no extractable text
// (OCR is out of scope); they are indexed by their metadata fields only.
type imageExtractor struct{}

func (imageExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	return "", nil, nil
}
