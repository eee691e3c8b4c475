// Package document defines the shared document model: the metadata projection
// read from the source store and the record persisted to the search index.
package document

import "time"

// PageEntry carries the extracted text of a single page of a paginated
// document. Page numbers are 1-based.
type PageEntry struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Meta is one source row's ingestible metadata. It is owned by the source
// store; the pipeline treats it as read-only input.
type Meta struct {
	SourceTable  string         `json:"source_table"`
	RowID        string         `json:"original_id"`
	Name         string         `json:"name"`
	Title        string         `json:"title"`
	FormNo       string         `json:"form_no,omitempty"`
	MimeType     string         `json:"mimeType"`
	SizeBytes    int64          `json:"size"`
	ModifiedTime time.Time      `json:"modifiedTime"`
	Path         string         `json:"path"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IndexRecord is the unit persisted to the search index. ID is the composite
// identity string and must be globally unique across all configured source
// tables. PageInfo is present only for paginated formats; it is carried for
// query-time page location and is never indexed as a searchable field.
type IndexRecord struct {
	ID           string         `json:"id"`
	SourceTable  string         `json:"source_table"`
	RowID        string         `json:"original_id"`
	Name         string         `json:"name"`
	Title        string         `json:"title"`
	FormNo       string         `json:"form_no,omitempty"`
	Content      string         `json:"content"`
	Path         string         `json:"path"`
	MimeType     string         `json:"mimeType"`
	SizeBytes    int64          `json:"size"`
	ModifiedTime time.Time      `json:"modifiedTime"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PageInfo     []PageEntry    `json:"page_info,omitempty"`
}

// FromMeta builds an IndexRecord from source metadata plus extraction output.
// The record keeps every metadata field so query results can be rendered
// without a round trip to the source store.
func FromMeta(id string, meta Meta, content string, pages []PageEntry) IndexRecord {
	title := meta.Title
	if title == "" {
		title = meta.Name
	}
	return IndexRecord{
		ID:           id,
		SourceTable:  meta.SourceTable,
		RowID:        meta.RowID,
		Name:         meta.Name,
		Title:        title,
		FormNo:       meta.FormNo,
		Content:      content,
		Path:         meta.Path,
		MimeType:     meta.MimeType,
		SizeBytes:    meta.SizeBytes,
		ModifiedTime: meta.ModifiedTime,
		Metadata:     meta.Metadata,
		PageInfo:     pages,
	}
}
