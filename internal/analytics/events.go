// Package analytics publishes search and indexing telemetry to Kafka without
// ever blocking a request path.
package analytics

import "time"

// SearchEvent records one executed search query.
type SearchEvent struct {
	Type      string    `json:"type"`
	Query     string    `json:"query"`
	Filters   string    `json:"filters,omitempty"`
	Hits      int       `json:"hits"`
	TotalHits uint64    `json:"total_hits"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexRunEvent records the outcome of one indexing run.
type IndexRunEvent struct {
	Type          string    `json:"type"`
	ClearExisting bool      `json:"clear_existing"`
	Total         int64     `json:"total"`
	Indexed       int64     `json:"indexed"`
	Failed        int64     `json:"failed"`
	Skipped       int64     `json:"skipped"`
	DurationMs    int64     `json:"duration_ms"`
	Aborted       bool      `json:"aborted"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewSearchEvent stamps a SearchEvent with its type and time.
func NewSearchEvent(e SearchEvent) SearchEvent {
	e.Type = "search"
	e.Timestamp = time.Now().UTC()
	return e
}

// NewIndexRunEvent stamps an IndexRunEvent with its type and time.
func NewIndexRunEvent(e IndexRunEvent) IndexRunEvent {
	e.Type = "index_run"
	e.Timestamp = time.Now().UTC()
	return e
}
