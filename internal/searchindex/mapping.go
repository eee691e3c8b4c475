package searchindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// sourceField carries the JSON-encoded IndexRecord. It is stored for
// retrieval but never analyzed, so page text can be read back at query time
// without ever matching a search.
const sourceField = "_source"

// searchFields are the analyzed fields queries run against, with their
// relative boosts. Name and title outrank body content so that filename
// matches surface first.
var searchFields = []struct {
	Name  string
	Boost float64
}{
	{"name", 3.0},
	{"title", 2.0},
	{"form_no", 2.0},
	{"content", 1.0},
	{"path", 1.0},
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Store = true
		fm.IncludeTermVectors = true
		return fm
	}
	kw := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}

	for _, f := range searchFields {
		fm := text()
		// Filenames and paths tokenize on punctuation so a bare basename
		// query like "manifest" matches "manifest.txt".
		if f.Name == "name" || f.Name == "path" {
			fm.Analyzer = simple.Name
		}
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	doc.AddFieldMappingsAt("source_table", kw())
	doc.AddFieldMappingsAt("mimeType", kw())

	modified := bleve.NewDateTimeFieldMapping()
	modified.Store = true
	doc.AddFieldMappingsAt("modified_time", modified)

	size := bleve.NewNumericFieldMapping()
	size.IncludeInAll = false
	doc.AddFieldMappingsAt("size", size)

	// Metadata values are filterable exact-match terms, never free text.
	meta := bleve.NewDocumentMapping()
	meta.DefaultAnalyzer = keyword.Name
	doc.AddSubDocumentMapping("metadata", meta)

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.IncludeTermVectors = false
	doc.AddFieldMappingsAt(sourceField, src)

	indexMapping.DefaultMapping = doc
	return indexMapping
}
