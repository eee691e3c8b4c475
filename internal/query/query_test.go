package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/internal/searchindex"
)

func TestLocatePage(t *testing.T) {
	pages := []document.PageEntry{
		{Page: 1, Text: "alpha"},
		{Page: 2, Text: "beta alpha"},
	}

	page, ok := LocatePage(pages, "alpha")
	require.True(t, ok)
	assert.Equal(t, 1, page)

	page, ok = LocatePage(pages, "beta")
	require.True(t, ok)
	assert.Equal(t, 2, page)

	_, ok = LocatePage(pages, "gamma")
	assert.False(t, ok)
}

func TestLocatePageIsCaseInsensitive(t *testing.T) {
	pages := []document.PageEntry{{Page: 3, Text: "Annual Safety Report"}}

	page, ok := LocatePage(pages, "SAFETY report")
	require.True(t, ok)
	assert.Equal(t, 3, page)
}

func TestLocatePageOrdersByPageNumber(t *testing.T) {
	pages := []document.PageEntry{
		{Page: 5, Text: "target"},
		{Page: 2, Text: "target"},
	}

	page, ok := LocatePage(pages, "target")
	require.True(t, ok)
	assert.Equal(t, 2, page)
}

func TestLocatePageBlankInputs(t *testing.T) {
	_, ok := LocatePage(nil, "alpha")
	assert.False(t, ok)

	_, ok = LocatePage([]document.PageEntry{{Page: 1, Text: "alpha"}}, "   ")
	assert.False(t, ok)
}

func shapeInput() *searchindex.Result {
	return &searchindex.Result{
		Hits: []searchindex.Hit{
			{
				Record: document.IndexRecord{
					ID:           "FORMS_MASTER:1",
					SourceTable:  "FORMS_MASTER",
					RowID:        "1",
					Name:         "report.pdf",
					Title:        "report.pdf",
					Content:      "[Page 1]\nintro\n[Page 2]\ninvoice total 500",
					Path:         "FORMS_MASTER/report.pdf",
					MimeType:     "application/pdf",
					SizeBytes:    1024,
					ModifiedTime: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
					PageInfo: []document.PageEntry{
						{Page: 1, Text: "intro"},
						{Page: 2, Text: "invoice total 500"},
					},
				},
				Score: 1.5,
				Fragments: map[string][]string{
					"content": {"…<em>invoice</em> total 500"},
				},
			},
		},
		Total: 1,
		Took:  12 * time.Millisecond,
	}
}

func TestShapeAttachesFormattedFields(t *testing.T) {
	resp := Shape(shapeInput(), "invoice", 20, 0)

	assert.Equal(t, "invoice", resp.Query)
	assert.Equal(t, int64(12), resp.ProcessingTimeMs)
	assert.Equal(t, uint64(1), resp.EstimatedTotalHits)
	require.Len(t, resp.Hits, 1)

	hit := resp.Hits[0]
	assert.Contains(t, hit.Formatted["content"], "<em>invoice</em>")
	assert.Equal(t, "report.pdf", hit.Formatted["name"])
	assert.Equal(t, "content", hit.MatchedField)
}

func TestShapeLocatesPageForPaginatedHits(t *testing.T) {
	resp := Shape(shapeInput(), "invoice", 20, 0)

	require.Len(t, resp.Hits, 1)
	require.NotNil(t, resp.Hits[0].PageNumber)
	assert.Equal(t, 2, *resp.Hits[0].PageNumber)
}

func TestShapeSkipsPageForUnpaginatedHits(t *testing.T) {
	result := shapeInput()
	result.Hits[0].Record.PageInfo = nil

	resp := Shape(result, "invoice", 20, 0)
	require.Len(t, resp.Hits, 1)
	assert.Nil(t, resp.Hits[0].PageNumber)
}

func TestShapeMatchedFieldPriority(t *testing.T) {
	result := shapeInput()
	result.Hits[0].Fragments["name"] = []string{"<em>report</em>.pdf"}

	resp := Shape(result, "report", 20, 0)
	assert.Equal(t, "name", resp.Hits[0].MatchedField)
}

func TestShapeTruncatesLongContent(t *testing.T) {
	result := shapeInput()
	result.Hits[0].Record.Content = strings.Repeat("long body ", 100)
	result.Hits[0].Fragments = nil

	resp := Shape(result, "unmatched", 20, 0)
	hit := resp.Hits[0]
	assert.LessOrEqual(t, len(hit.Formatted["content"]), 300)
	assert.Empty(t, hit.MatchedField)
}
