package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shipops/docsearch/internal/document"
)

// Word and PowerPoint documents in the Office Open XML container are zip
// archives of XML parts. These extractors pull the text runs (w:t, a:t)
// straight out of the relevant parts instead of modeling the full format.

// wordExtractor handles .docx: paragraphs from word/document.xml, with table
// cell text arriving through the same run elements.
type wordExtractor struct{}

func (e *wordExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	part, err := zipPart(blob, "word/document.xml")
	if err != nil {
		return "", nil, err
	}
	text, err := collectRuns(part, "t", "p")
	if err != nil {
		return "", nil, fmt.Errorf("parsing word document: %w", err)
	}
	return text, nil, nil
}

// slidesExtractor handles .pptx: one text block per slide, slides in numeric
// order.
type slidesExtractor struct{}

func (e *slidesExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", nil, fmt.Errorf("opening pptx container: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range r.File {
		name := f.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
		num, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: f})
	}
	if len(slides) == 0 {
		return "", nil, fmt.Errorf("pptx container has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text, err := collectRuns(data, "t", "p")
		if err != nil || text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Slide %d]\n%s", s.num, text))
	}
	return strings.Join(parts, "\n\n"), nil, nil
}

// zipPart returns the named entry's contents from a zip container.
func zipPart(blob []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("opening ooxml container: %w", err)
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("container missing part %s", name)
}

// collectRuns streams the XML and concatenates character data inside elements
// with the given run local name, inserting a newline at the end of each
// element with the break local name.
func collectRuns(data []byte, runName, breakName string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == runName {
				depth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case runName:
				if depth > 0 {
					depth--
				}
			case breakName:
				b.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
