// Package searchindex wraps an embedded bleve index behind the upsert, query,
// stats and clear operations the rest of the service depends on.
package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/pkg/config"
	apperrors "github.com/shipops/docsearch/pkg/errors"
)

// Hit is one ranked match: the stored record, its score and the
// highlighter's per-field fragments.
type Hit struct {
	Record    document.IndexRecord
	Score     float64
	Fragments map[string][]string
}

// Result is the raw outcome of one query before response shaping.
type Result struct {
	Hits  []Hit
	Total uint64
	Took  time.Duration
}

// Stats describes the index for the stats endpoint.
type Stats struct {
	Count             uint64            `json:"numberOfDocuments"`
	IsIndexing        bool              `json:"isIndexing"`
	FieldDistribution map[string]uint64 `json:"fieldDistribution"`
}

// Client owns the bleve index. Reads may run concurrently; destructive
// operations (batch writes, clear) take the write lock so a clear never
// races an in-flight upsert.
type Client struct {
	mu       sync.RWMutex
	index    bleve.Index
	cfg      config.SearchConfig
	indexing atomic.Bool
	logger   *slog.Logger
}

// New opens the index at path, creating it with the document mapping if it
// does not exist. An empty path builds an in-memory index, used by tests.
func New(path string, cfg config.SearchConfig) (*Client, error) {
	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
				return nil, fmt.Errorf("creating index directory: %w", mkErr)
			}
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Client{
		index:  idx,
		cfg:    cfg,
		logger: slog.Default().With("component", "search-index"),
	}, nil
}

// SetIndexing flips the flag reported by Stats while a run is in progress.
func (c *Client) SetIndexing(v bool) {
	c.indexing.Store(v)
}

// UpsertBatch inserts or replaces records by id. Re-sending a batch with
// overlapping ids is safe: bleve replaces on identical doc ids.
func (c *Client) UpsertBatch(ctx context.Context, records []document.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := c.index.NewBatch()
	for _, rec := range records {
		doc, err := indexDoc(rec)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
		if err := batch.Index(rec.ID, doc); err != nil {
			return fmt.Errorf("batching record %s: %w", rec.ID, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("flushing batch of %d records: %w", len(records), err)
	}
	return nil
}

// indexDoc projects an IndexRecord into the shape the mapping expects. The
// full record rides along JSON-encoded under the stored-only source field so
// query time can reconstruct page text without it being searchable.
func indexDoc(rec document.IndexRecord) (map[string]any, error) {
	src, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{
		"name":          rec.Name,
		"title":         rec.Title,
		"form_no":       rec.FormNo,
		"content":       rec.Content,
		"path":          rec.Path,
		"source_table":  rec.SourceTable,
		"mimeType":      rec.MimeType,
		"modified_time": rec.ModifiedTime,
		"size":          rec.SizeBytes,
		sourceField:     string(src),
	}
	if len(rec.Metadata) > 0 {
		doc["metadata"] = rec.Metadata
	}
	return doc, nil
}

// Query runs q against the searchable fields, ranking exact phrase and
// high-boost field matches above generic relevance with recency as the
// tiebreak. A blank query is rejected; a malformed filter expression is
// rejected before the index is touched.
func (c *Client) Query(ctx context.Context, q string, limit, offset int, filters string) (*Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: query must not be blank", apperrors.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	if limit > c.cfg.MaxResults {
		limit = c.cfg.MaxResults
	}
	if offset < 0 {
		offset = 0
	}

	searchQuery, err := buildQuery(q, filters)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, offset, false)
	req.Fields = []string{sourceField}
	req.SortBy([]string{"-_score", "-modified_time"})
	req.Highlight = bleve.NewHighlightWithStyle(EmHighlighterName)
	for _, f := range searchFields {
		req.Highlight.AddField(f.Name)
	}

	c.mu.RLock()
	result, err := c.index.SearchInContext(ctx, req)
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec, err := decodeSource(hit.Fields)
		if err != nil {
			c.logger.Warn("dropping undecodable hit", "id", hit.ID, "error", err)
			continue
		}
		hits = append(hits, Hit{Record: rec, Score: hit.Score, Fragments: hit.Fragments})
	}
	return &Result{Hits: hits, Total: result.Total, Took: result.Took}, nil
}

func buildQuery(q, filters string) (query.Query, error) {
	terms := make([]query.Query, 0, 2*len(searchFields))
	for _, f := range searchFields {
		match := bleve.NewMatchQuery(q)
		match.SetField(f.Name)
		match.SetBoost(f.Boost)
		terms = append(terms, match)

		phrase := bleve.NewMatchPhraseQuery(q)
		phrase.SetField(f.Name)
		phrase.SetBoost(f.Boost * 2)
		terms = append(terms, phrase)
	}
	searchQuery := query.Query(bleve.NewDisjunctionQuery(terms...))

	if strings.TrimSpace(filters) != "" {
		filterQuery := query.NewQueryStringQuery(filters)
		if _, err := filterQuery.Parse(); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidFilter, err)
		}
		searchQuery = bleve.NewConjunctionQuery(searchQuery, filterQuery)
	}
	return searchQuery, nil
}

func decodeSource(fields map[string]any) (document.IndexRecord, error) {
	var rec document.IndexRecord
	raw, ok := fields[sourceField].(string)
	if !ok {
		return rec, fmt.Errorf("stored source field missing")
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return rec, fmt.Errorf("decoding stored source: %w", err)
	}
	return rec, nil
}

// Get returns one record by composite id, or ErrDocumentNotFound.
func (c *Client) Get(ctx context.Context, id string) (*document.IndexRecord, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{sourceField}

	c.mu.RLock()
	result, err := c.index.SearchInContext(ctx, req)
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}
	if len(result.Hits) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	rec, err := decodeSource(result.Hits[0].Fields)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns a window of records ordered by recency, for the listing
// endpoint.
func (c *Client) List(ctx context.Context, limit, offset int) ([]document.IndexRecord, uint64, error) {
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	if limit > c.cfg.MaxResults {
		limit = c.cfg.MaxResults
	}
	if offset < 0 {
		offset = 0
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), limit, offset, false)
	req.Fields = []string{sourceField}
	req.SortBy([]string{"-modified_time"})

	c.mu.RLock()
	result, err := c.index.SearchInContext(ctx, req)
	c.mu.RUnlock()
	if err != nil {
		return nil, 0, fmt.Errorf("listing records: %w", err)
	}
	records := make([]document.IndexRecord, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec, err := decodeSource(hit.Fields)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, result.Total, nil
}

// Stats reports document count, whether a run is active, and how many
// documents carry each record field.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	c.mu.RLock()
	count, err := c.index.DocCount()
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	dist, err := c.fieldDistribution(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Count:             count,
		IsIndexing:        c.indexing.Load(),
		FieldDistribution: dist,
	}, nil
}

// fieldDistribution walks every stored record in pages and counts how many
// documents populate each field. It queries the index directly rather than
// through List, which clamps its window to the configured result cap.
func (c *Client) fieldDistribution(ctx context.Context) (map[string]uint64, error) {
	const pageSize = 500
	dist := make(map[string]uint64)
	for offset := 0; ; offset += pageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, offset, false)
		req.Fields = []string{sourceField}

		c.mu.RLock()
		result, err := c.index.SearchInContext(ctx, req)
		c.mu.RUnlock()
		if err != nil {
			return nil, fmt.Errorf("walking records: %w", err)
		}
		for _, hit := range result.Hits {
			rec, err := decodeSource(hit.Fields)
			if err != nil {
				continue
			}
			tally(dist, rec)
		}
		if len(result.Hits) == 0 || uint64(offset+len(result.Hits)) >= result.Total {
			break
		}
	}
	return dist, nil
}

func tally(dist map[string]uint64, rec document.IndexRecord) {
	count := func(field string, present bool) {
		if present {
			dist[field]++
		}
	}
	count("id", rec.ID != "")
	count("name", rec.Name != "")
	count("title", rec.Title != "")
	count("form_no", rec.FormNo != "")
	count("content", rec.Content != "")
	count("path", rec.Path != "")
	count("source_table", rec.SourceTable != "")
	count("mimeType", rec.MimeType != "")
	count("size", rec.SizeBytes > 0)
	count("modified_time", !rec.ModifiedTime.IsZero())
	count("metadata", len(rec.Metadata) > 0)
	count("page_info", len(rec.PageInfo) > 0)
}

// Clear removes every record. Irreversible.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, err := c.index.DocCount()
	if err != nil {
		return fmt.Errorf("counting documents before clear: %w", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	result, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("enumerating records for clear: %w", err)
	}
	batch := c.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("clearing %d records: %w", batch.Size(), err)
	}
	c.logger.Info("index cleared", "removed", count)
	return nil
}

// Count returns the number of indexed documents.
func (c *Client) Count() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.DocCount()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Close()
}
