package query

import (
	"strings"
	"time"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/internal/searchindex"
)

// matchPriority is the order used to report which field a hit matched on
// when the highlighter produced fragments for several fields.
var matchPriority = []string{"name", "title", "form_no", "content", "path"}

// HitView is the client-facing projection of one ranked hit. Page text never
// leaves the service; only the located page number does.
type HitView struct {
	ID           string            `json:"id"`
	SourceTable  string            `json:"source_table"`
	RowID        string            `json:"original_id"`
	Name         string            `json:"name"`
	Title        string            `json:"title"`
	FormNo       string            `json:"form_no,omitempty"`
	Path         string            `json:"path"`
	MimeType     string            `json:"mimeType"`
	SizeBytes    int64             `json:"size"`
	ModifiedTime time.Time         `json:"modifiedTime"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	Score        float64           `json:"score"`
	Formatted    map[string]string `json:"formatted"`
	MatchedField string            `json:"matched_field,omitempty"`
	PageNumber   *int              `json:"page_number,omitempty"`
}

// SearchResponse is the paginated envelope returned by the search endpoint.
type SearchResponse struct {
	Hits               []HitView `json:"hits"`
	Query              string    `json:"query"`
	ProcessingTimeMs   int64     `json:"processingTimeMs"`
	EstimatedTotalHits uint64    `json:"estimatedTotalHits"`
	Limit              int       `json:"limit"`
	Offset             int       `json:"offset"`
}

// Shape turns a raw index result into the response envelope. For each hit it
// copies highlighter fragments into the formatted projection, resolves the
// matched field, and locates the page for paginated records.
func Shape(result *searchindex.Result, q string, limit, offset int) *SearchResponse {
	hits := make([]HitView, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, shapeHit(hit, q))
	}
	return &SearchResponse{
		Hits:               hits,
		Query:              q,
		ProcessingTimeMs:   result.Took.Milliseconds(),
		EstimatedTotalHits: result.Total,
		Limit:              limit,
		Offset:             offset,
	}
}

func shapeHit(hit searchindex.Hit, q string) HitView {
	rec := hit.Record
	view := HitView{
		ID:           rec.ID,
		SourceTable:  rec.SourceTable,
		RowID:        rec.RowID,
		Name:         rec.Name,
		Title:        rec.Title,
		FormNo:       rec.FormNo,
		Path:         rec.Path,
		MimeType:     rec.MimeType,
		SizeBytes:    rec.SizeBytes,
		ModifiedTime: rec.ModifiedTime,
		Metadata:     rec.Metadata,
		Score:        hit.Score,
		Formatted:    formatFields(rec, hit.Fragments),
		MatchedField: matchedField(hit.Fragments),
	}
	if len(rec.PageInfo) > 0 {
		if page, ok := LocatePage(rec.PageInfo, q); ok {
			view.PageNumber = &page
		}
	}
	return view
}

// formatFields fills the formatted projection: the highlighter's fragment
// when the field matched, the plain stored value otherwise. The content
// field falls back to a leading snippet rather than the full body.
func formatFields(rec document.IndexRecord, fragments map[string][]string) map[string]string {
	plain := map[string]string{
		"name":    rec.Name,
		"title":   rec.Title,
		"form_no": rec.FormNo,
		"content": contentSnippet(rec.Content),
		"path":    rec.Path,
	}
	formatted := make(map[string]string, len(plain))
	for field, value := range plain {
		if frags := fragments[field]; len(frags) > 0 {
			formatted[field] = strings.Join(frags, " ")
		} else {
			formatted[field] = value
		}
	}
	return formatted
}

const snippetLength = 300

func contentSnippet(content string) string {
	if len(content) <= snippetLength {
		return content
	}
	cut := snippetLength
	for cut > 0 && !isRuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func matchedField(fragments map[string][]string) string {
	for _, field := range matchPriority {
		if len(fragments[field]) > 0 {
			return field
		}
	}
	return ""
}
