// Package extract turns document blobs into cleaned, length-bounded text.
// A Dispatcher routes each file by extension to a format-specific extractor;
// unknown formats and extractor failures degrade per document and never
// abort an indexing run.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shipops/docsearch/internal/document"
)

// Outcome classifies a single dispatch.
type Outcome string

const (
	// OutcomeExtracted means text was produced (possibly empty, for formats
	// indexed by metadata only).
	OutcomeExtracted Outcome = "extracted"
	// OutcomeUnsupported means no extractor handles the file's extension.
	// This is a normal, expected outcome, not an error.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeFailed means the extractor errored or panicked on the blob.
	OutcomeFailed Outcome = "failed"
)

// Result is the outcome of dispatching one document.
type Result struct {
	Outcome Outcome
	Text    string
	Pages   []document.PageEntry
	Err     error
}

// Extractor extracts plain text from a blob of its format. Extractors that
// understand pagination also return per-page text.
type Extractor interface {
	Extract(blob []byte) (text string, pages []document.PageEntry, err error)
}

// Dispatcher maps lower-cased file extensions to extractors and applies
// uniform post-processing (cleaning and truncation) to every extraction.
type Dispatcher struct {
	extractors map[string]Extractor
	maxLength  int
	logger     *slog.Logger
}

// DefaultMaxTextLength bounds extracted text when no limit is configured.
const DefaultMaxTextLength = 50000

// NewDispatcher creates a Dispatcher with the full set of supported formats.
// maxTextLength bounds the cleaned text; zero selects the default.
func NewDispatcher(maxTextLength int) *Dispatcher {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	d := &Dispatcher{
		extractors: make(map[string]Extractor),
		maxLength:  maxTextLength,
		logger:     slog.Default().With("component", "extract"),
	}

	pdf := &pdfExtractor{}
	docx := &wordExtractor{}
	xlsx := &excelExtractor{}
	pptx := &slidesExtractor{}
	img := imageExtractor{}

	d.register(pdf, "pdf")
	// Legacy binary .doc/.xls/.ppt blobs are routed to the OOXML extractors;
	// genuine pre-2007 files fail there and are counted as failed.
	d.register(docx, "docx", "doc")
	d.register(xlsx, "xlsx", "xls")
	d.register(pptx, "pptx", "ppt")
	d.register(textExtractor{}, "txt")
	// Images are indexed by metadata only; the extractor yields empty text.
	d.register(img, "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp")

	return d
}

func (d *Dispatcher) register(e Extractor, exts ...string) {
	for _, ext := range exts {
		d.extractors[ext] = e
	}
}

// Supported reports whether the filename's extension has an extractor.
func (d *Dispatcher) Supported(filename string) bool {
	_, ok := d.extractors[extensionOf(filename)]
	return ok
}

// Dispatch routes the blob to the extractor for the filename's extension and
// post-processes the result. All extractor errors and panics are absorbed
// into a Failed result.
func (d *Dispatcher) Dispatch(filename string, blob []byte) Result {
	ext := extensionOf(filename)
	extractor, ok := d.extractors[ext]
	if !ok {
		return Result{Outcome: OutcomeUnsupported}
	}

	text, pages, err := d.safeExtract(extractor, filename, blob)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	text = Truncate(CleanText(text), d.maxLength)
	cleaned := pages[:0]
	for _, p := range pages {
		p.Text = CleanText(p.Text)
		if p.Text == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		cleaned = nil
	}
	return Result{Outcome: OutcomeExtracted, Text: text, Pages: cleaned}
}

// safeExtract converts extractor panics into errors so a single corrupt blob
// cannot take down a run.
func (d *Dispatcher) safeExtract(e Extractor, filename string, blob []byte) (text string, pages []document.PageEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("extractor panicked", "file", filename, "panic", r)
			text, pages = "", nil
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return e.Extract(blob)
}

func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
