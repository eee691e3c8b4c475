// Package api implements the HTTP surface: search, indexing control, stats,
// and document retrieval endpoints consumed by the UI.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shipops/docsearch/internal/analytics"
	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/internal/identity"
	"github.com/shipops/docsearch/internal/pipeline"
	"github.com/shipops/docsearch/internal/query"
	"github.com/shipops/docsearch/internal/searchindex"
	"github.com/shipops/docsearch/internal/source"
	"github.com/shipops/docsearch/pkg/config"
	apperrors "github.com/shipops/docsearch/pkg/errors"
	"github.com/shipops/docsearch/pkg/logger"
	"github.com/shipops/docsearch/pkg/metrics"
)

// Handler wires the domain components behind the HTTP endpoints.
type Handler struct {
	index     *searchindex.Client
	runner    *pipeline.Runner
	gateway   source.Gateway
	codec     *identity.Codec
	cache     *QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	cfg       config.SearchConfig
	logger    *slog.Logger
}

func NewHandler(
	index *searchindex.Client,
	runner *pipeline.Runner,
	gateway source.Gateway,
	codec *identity.Codec,
	cache *QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		index:     index,
		runner:    runner,
		gateway:   gateway,
		codec:     codec,
		cache:     cache,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "api"),
	}
}

// Register attaches every route to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.Search)
	mux.HandleFunc("POST /api/index", h.Index)
	mux.HandleFunc("POST /api/index/clear", h.ClearIndex)
	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/document/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/document/{id}/proxy", h.ProxyDocument)
	mux.HandleFunc("GET /api/document/{id}/download", h.DownloadDocument)
}

type searchRequest struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Filters string `json:"filters"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.cfg.DefaultLimit
	}
	if req.Limit > h.cfg.MaxResults {
		req.Limit = h.cfg.MaxResults
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	resp, cacheHit, err := h.cache.GetOrCompute(ctx, req.Query, req.Limit, req.Offset, req.Filters,
		func() (*query.SearchResponse, error) {
			result, err := h.index.Query(ctx, req.Query, req.Limit, req.Offset, req.Filters)
			if err != nil {
				return nil, err
			}
			return query.Shape(result, req.Query, req.Limit, req.Offset), nil
		})
	if err != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.writeAppError(w, log, "search failed", err)
		return
	}

	latency := time.Since(start)
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	outcome := "ok"
	if len(resp.Hits) == 0 {
		outcome = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(resp.Hits)))

	log.Info("search completed",
		"query", req.Query,
		"hits", len(resp.Hits),
		"total", resp.EstimatedTotalHits,
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.collector.Track(analytics.NewSearchEvent(analytics.SearchEvent{
		Query:     req.Query,
		Filters:   req.Filters,
		Hits:      len(resp.Hits),
		TotalHits: resp.EstimatedTotalHits,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		RequestID: logger.RequestID(ctx),
	}))

	h.writeJSON(w, http.StatusOK, resp)
}

type indexRequest struct {
	ClearExisting bool `json:"clear_existing"`
}

type indexResponse struct {
	Success bool            `json:"success"`
	Stats   *pipeline.Stats `json:"stats,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Index runs the ingestion pipeline synchronously and reports its
// statistics. A run already in progress yields 409 without starting another.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req indexRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
	}

	start := time.Now()
	stats, err := h.runner.Run(ctx, req.ClearExisting)
	if errors.Is(err, apperrors.ErrRunInProgress) {
		h.writeError(w, http.StatusConflict, "an indexing run is already in progress")
		return
	}

	// The index changed even when the run aborted partway, so cached hit
	// lists are stale either way.
	if invErr := h.cache.Invalidate(ctx); invErr != nil {
		log.Error("cache invalidation after run failed", "error", invErr)
	}
	h.collector.Track(analytics.NewIndexRunEvent(analytics.IndexRunEvent{
		ClearExisting: req.ClearExisting,
		Total:         stats.Total,
		Indexed:       stats.Indexed,
		Failed:        stats.Failed,
		Skipped:       stats.Skipped,
		DurationMs:    time.Since(start).Milliseconds(),
		Aborted:       err != nil,
	}))

	if err != nil {
		log.Error("indexing run failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), indexResponse{
			Success: false,
			Stats:   stats,
			Error:   err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, indexResponse{Success: true, Stats: stats})
}

func (h *Handler) ClearIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := h.index.Clear(ctx); err != nil {
		h.writeAppError(w, log, "clearing index failed", err)
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		log.Error("cache invalidation after clear failed", "error", err)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "index cleared",
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Stats(r.Context())
	if err != nil {
		h.writeAppError(w, logger.FromContext(r.Context()), "reading index stats failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table, rowID, err := h.codec.Decode(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "invalid document id", err)
		return
	}
	meta, err := h.gateway.FetchMeta(ctx, table, rowID)
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "document lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// ProxyDocument streams the original blob with its stored content type so
// the browser can render it in place. Range requests are honored for the
// embedded PDF viewer.
func (h *Handler) ProxyDocument(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, "inline")
}

// DownloadDocument serves the same blob as an attachment so the browser
// saves it under its original filename instead of rendering it.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, "attachment")
}

func (h *Handler) serveBlob(w http.ResponseWriter, r *http.Request, disposition string) {
	ctx := r.Context()
	table, rowID, err := h.codec.Decode(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "invalid document id", err)
		return
	}
	meta, err := h.gateway.FetchMeta(ctx, table, rowID)
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "document lookup failed", err)
		return
	}
	blob, err := h.gateway.FetchBlob(ctx, table, rowID)
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "document fetch failed", err)
		return
	}

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Disposition", disposition+`; filename="`+meta.Name+`"`)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Length, Accept-Ranges")
	http.ServeContent(w, r, meta.Name, meta.ModifiedTime, bytes.NewReader(blob))
}

type documentsResponse struct {
	Documents []document.Meta `json:"documents"`
	Total     int             `json:"total"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}

// ListDocuments pages through the raw source metadata across all configured
// tables, independent of index state.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", h.cfg.DefaultLimit)
	if limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be positive and offset non-negative")
		return
	}

	metas, err := h.gateway.ListDocuments(ctx)
	if err != nil {
		h.writeAppError(w, logger.FromContext(ctx), "listing documents failed", err)
		return
	}

	total := len(metas)
	window := metas[min(offset, total):min(offset+limit, total)]
	h.writeJSON(w, http.StatusOK, documentsResponse{
		Documents: window,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a domain error onto its HTTP status. Caller input
// errors surface with their own message; everything else gets the generic
// one so internals stay out of responses.
func (h *Handler) writeAppError(w http.ResponseWriter, log *slog.Logger, fallback string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error(fallback, "error", err)
		h.writeError(w, status, fallback)
		return
	}
	h.writeError(w, status, err.Error())
}
