// Package pipeline orchestrates indexing runs: enumerate source rows, fetch
// and extract in parallel, and flush fixed-size batches to the search index.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/internal/extract"
	"github.com/shipops/docsearch/internal/identity"
	"github.com/shipops/docsearch/internal/source"
	"github.com/shipops/docsearch/pkg/config"
	apperrors "github.com/shipops/docsearch/pkg/errors"
	"github.com/shipops/docsearch/pkg/metrics"
)

// Index is the slice of the search index the pipeline writes to.
type Index interface {
	UpsertBatch(ctx context.Context, records []document.IndexRecord) error
	Clear(ctx context.Context) error
	SetIndexing(v bool)
}

// Stats accumulates per-run accounting. Total always equals
// Indexed + Failed + Skipped once the run finishes or aborts.
type Stats struct {
	Total   int64 `json:"total"`
	Indexed int64 `json:"indexed"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// Runner executes indexing runs. At most one run is active at a time; a
// second Run call while one is in flight fails with ErrRunInProgress.
type Runner struct {
	gateway    source.Gateway
	index      Index
	dispatcher *extract.Dispatcher
	codec      *identity.Codec
	cfg        config.IndexingConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu   sync.Mutex
	busy bool
}

func NewRunner(gateway source.Gateway, index Index, dispatcher *extract.Dispatcher, codec *identity.Codec, cfg config.IndexingConfig, m *metrics.Metrics) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultBatchSize
	}
	return &Runner{
		gateway:    gateway,
		index:      index,
		dispatcher: dispatcher,
		codec:      codec,
		cfg:        cfg,
		metrics:    m,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

// Busy reports whether a run is currently in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return false
	}
	r.busy = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

type outcomeKind int

const (
	outcomeIndexed outcomeKind = iota
	outcomeSkipped
	outcomeFailed
)

type docResult struct {
	kind   outcomeKind
	record document.IndexRecord
}

// Run executes one full indexing run and returns its statistics. On abort
// (listing failure, flush failure, cancellation) the partial statistics
// gathered so far are returned alongside the error.
func (r *Runner) Run(ctx context.Context, clearExisting bool) (*Stats, error) {
	if !r.acquire() {
		return nil, apperrors.ErrRunInProgress
	}
	defer r.release()

	r.index.SetIndexing(true)
	defer r.index.SetIndexing(false)

	r.metrics.IndexRunActive.Set(1)
	start := time.Now()
	defer func() {
		r.metrics.IndexRunActive.Set(0)
		r.metrics.IndexRunDuration.Observe(time.Since(start).Seconds())
	}()

	stats := &Stats{}

	if clearExisting {
		if err := r.index.Clear(ctx); err != nil {
			return stats, fmt.Errorf("clearing index before run: %w", err)
		}
	}

	metas, err := r.gateway.ListDocuments(ctx)
	if err != nil {
		return stats, fmt.Errorf("enumerating source documents: %w", err)
	}
	stats.Total = int64(len(metas))
	r.logger.Info("indexing run started", "documents", len(metas), "clear_existing", clearExisting, "workers", r.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan document.Meta)
	results := make(chan docResult)

	g.Go(func() error {
		defer close(jobs)
		for _, meta := range metas {
			select {
			case jobs <- meta:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for meta := range jobs {
				res := r.process(gctx, meta)
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// The collector is the only goroutine touching the index, so batch
	// flushes are serialized and never overlap a clear.
	g.Go(func() error {
		batch := make([]document.IndexRecord, 0, r.cfg.BatchSize)
		for res := range results {
			switch res.kind {
			case outcomeIndexed:
				batch = append(batch, res.record)
			case outcomeSkipped:
				stats.Skipped++
				r.metrics.DocsSkippedTotal.Inc()
			case outcomeFailed:
				stats.Failed++
				r.metrics.DocsFailedTotal.Inc()
			}
			if len(batch) >= r.cfg.BatchSize {
				if err := r.flush(gctx, batch, stats); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return r.flush(gctx, batch, stats)
	})

	if err := g.Wait(); err != nil {
		// Unprocessed documents count as failed so the accounting
		// invariant holds even for aborted runs.
		stats.Failed = stats.Total - stats.Indexed - stats.Skipped
		r.logger.Error("indexing run aborted", "error", err, "indexed", stats.Indexed, "failed", stats.Failed, "skipped", stats.Skipped)
		return stats, err
	}

	r.logger.Info("indexing run finished",
		"total", stats.Total,
		"indexed", stats.Indexed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return stats, nil
}

func (r *Runner) flush(ctx context.Context, batch []document.IndexRecord, stats *Stats) error {
	if len(batch) == 0 {
		return nil
	}
	if err := r.index.UpsertBatch(ctx, batch); err != nil {
		r.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("flushing batch of %d records: %w", len(batch), err)
	}
	r.metrics.IndexFlushesTotal.WithLabelValues("ok").Inc()
	stats.Indexed += int64(len(batch))
	r.metrics.DocsIndexedTotal.Add(float64(len(batch)))
	return nil
}

// process turns one source row into an index record, absorbing per-document
// problems into the run outcome. Empty extracted text still indexes the
// document so it stays findable by metadata.
func (r *Runner) process(ctx context.Context, meta document.Meta) docResult {
	id, err := r.codec.Encode(meta.SourceTable, meta.RowID)
	if err != nil {
		r.logger.Warn("document skipped, bad identity", "table", meta.SourceTable, "row", meta.RowID, "error", err)
		return docResult{kind: outcomeFailed}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	blob, err := r.gateway.FetchBlob(fetchCtx, meta.SourceTable, meta.RowID)
	cancel()
	if err != nil {
		r.logger.Warn("blob fetch failed", "id", id, "error", err)
		return docResult{kind: outcomeFailed}
	}

	res := r.dispatcher.Dispatch(meta.Name, blob)
	switch res.Outcome {
	case extract.OutcomeUnsupported:
		r.logger.Debug("unsupported format skipped", "id", id, "name", meta.Name)
		return docResult{kind: outcomeSkipped}
	case extract.OutcomeFailed:
		r.logger.Warn("extraction failed", "id", id, "name", meta.Name, "error", res.Err)
		return docResult{kind: outcomeFailed}
	}

	return docResult{
		kind:   outcomeIndexed,
		record: document.FromMeta(id, meta, res.Text, res.Pages),
	}
}
