package searchindex

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/pkg/config"
	apperrors "github.com/shipops/docsearch/pkg/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New("", config.SearchConfig{DefaultLimit: 20, MaxResults: 100})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testRecord(id, name, content string) document.IndexRecord {
	table, _, _ := strings.Cut(id, ":")
	return document.IndexRecord{
		ID:           id,
		SourceTable:  table,
		RowID:        strings.TrimPrefix(id, table+":"),
		Name:         name,
		Title:        name,
		Content:      content,
		Path:         table + "/" + name,
		MimeType:     "text/plain",
		SizeBytes:    int64(len(content)),
		ModifiedTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestQueryHighlightsMatchedTerms(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "billing.txt", "invoice total 500"),
		testRecord("FORMS_MASTER:2", "notes.txt", "meeting agenda for june"),
	}))

	result, err := c.Query(ctx, "invoice", 10, 0, "")
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	hit := result.Hits[0]
	assert.Equal(t, "FORMS_MASTER:1", hit.Record.ID)
	assert.Equal(t, uint64(1), result.Total)

	fragments := hit.Fragments["content"]
	require.NotEmpty(t, fragments)
	assert.Contains(t, fragments[0], "<em>invoice</em>")
}

func TestQueryRanksNameMatchesFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "report.txt", "the safety manifest lists every drill"),
		testRecord("FORMS_MASTER:2", "manifest.txt", "weekly report contents"),
	}))

	result, err := c.Query(ctx, "manifest", 10, 0, "")
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "FORMS_MASTER:2", result.Hits[0].Record.ID)
}

func TestQueryMatchesFileBasename(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "crew-manifest.txt", "nothing relevant here"),
		testRecord("FORMS_MASTER:2", "roster.txt", "duty roster"),
	}))

	// A bare basename query must hit the name and path fields even though
	// the stored values carry extensions and separators.
	result, err := c.Query(ctx, "manifest", 10, 0, "")
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "FORMS_MASTER:1", result.Hits[0].Record.ID)
}

func TestQueryRejectsBlankQuery(t *testing.T) {
	c := newTestClient(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := c.Query(context.Background(), q, 10, 0, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
	}
}

func TestQueryRejectsMalformedFilter(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Query(context.Background(), "invoice", 10, 0, `source_table:"unterminated`)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestQueryAppliesFilter(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "cert.txt", "inspection certificate"),
		testRecord("VESSEL_CERTIFICATES:9", "cert.txt", "inspection certificate"),
	}))

	result, err := c.Query(ctx, "certificate", 10, 0, `source_table:VESSEL_CERTIFICATES`)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "VESSEL_CERTIFICATES:9", result.Hits[0].Record.ID)
}

func TestUpsertIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	batch := []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "a.txt", "alpha"),
		testRecord("FORMS_MASTER:2", "b.txt", "beta"),
	}

	require.NoError(t, c.UpsertBatch(ctx, batch))
	require.NoError(t, c.UpsertBatch(ctx, batch))

	count, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := testRecord("FORMS_MASTER:7", "manual.txt", "engine room manual")
	rec.PageInfo = []document.PageEntry{{Page: 1, Text: "engine room manual"}}
	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{rec}))

	got, err := c.Get(ctx, "FORMS_MASTER:7")
	require.NoError(t, err)
	assert.Equal(t, "manual.txt", got.Name)
	require.Len(t, got.PageInfo, 1)
	assert.Equal(t, 1, got.PageInfo[0].Page)

	_, err = c.Get(ctx, "FORMS_MASTER:404")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestPageInfoIsNotSearchable(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := testRecord("FORMS_MASTER:1", "doc.pdf", "visible body text")
	rec.PageInfo = []document.PageEntry{{Page: 1, Text: "xyzzyhidden"}}
	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{rec}))

	result, err := c.Query(ctx, "xyzzyhidden", 10, 0, "")
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestClearRemovesEverything(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		testRecord("FORMS_MASTER:1", "a.txt", "alpha"),
		testRecord("FORMS_MASTER:2", "b.txt", "beta"),
	}))
	require.NoError(t, c.Clear(ctx))

	count, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	// clearing an empty index is a no-op
	require.NoError(t, c.Clear(ctx))
}

func TestStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	withForm := testRecord("FORMS_MASTER:1", "form.txt", "checklist")
	withForm.FormNo = "F-101"
	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{
		withForm,
		testRecord("FORMS_MASTER:2", "plain.txt", "notes"),
	}))

	c.SetIndexing(true)
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Count)
	assert.True(t, stats.IsIndexing)
	assert.Equal(t, uint64(2), stats.FieldDistribution["content"])
	assert.Equal(t, uint64(1), stats.FieldDistribution["form_no"])

	c.SetIndexing(false)
	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, stats.IsIndexing)
}

func TestStatsCountsBeyondResultCap(t *testing.T) {
	c, err := New("", config.SearchConfig{DefaultLimit: 5, MaxResults: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	batch := make([]document.IndexRecord, 0, 25)
	for i := 1; i <= 25; i++ {
		id := fmt.Sprintf("FORMS_MASTER:%d", i)
		batch = append(batch, testRecord(id, fmt.Sprintf("doc%d.txt", i), "filler text"))
	}
	require.NoError(t, c.UpsertBatch(ctx, batch))

	// The distribution walk must cover every record, not just the capped
	// listing window.
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), stats.Count)
	assert.Equal(t, uint64(25), stats.FieldDistribution["content"])
	assert.Equal(t, uint64(25), stats.FieldDistribution["name"])
}

func TestListOrdersByRecency(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	older := testRecord("FORMS_MASTER:1", "old.txt", "old")
	older.ModifiedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testRecord("FORMS_MASTER:2", "new.txt", "new")
	newer.ModifiedTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.UpsertBatch(ctx, []document.IndexRecord{older, newer}))

	records, total, err := c.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, "FORMS_MASTER:2", records[0].ID)

	records, _, err = c.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "FORMS_MASTER:1", records[0].ID)
}
