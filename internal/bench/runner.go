package bench

import (
	"context"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bus"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/embed"
	"github.com/vecbench/vecbench/internal/pkg/gitinfo"
	"github.com/vecbench/vecbench/internal/pkg/logger"
)

// RunnerConfig configures one end-to-end benchmark run.
type RunnerConfig struct {
	Context RunContext
	Backend BackendInfo
	Indexer IndexerConfig
	Querier QuerierConfig

	// KeepData leaves the collection in place after the run instead of
	// clearing it, so the indexed corpus can be inspected or reused.
	KeepData bool

	Notes string
}

// Runner drives a full benchmark: validate, index, query, aggregate,
// persist. It owns the store for the duration of the run and closes it on
// every exit path, success or failure.
type Runner struct {
	cfg      RunnerConfig
	store    backend.Store
	embedder embed.Embedder
	sink     Sink
	bus      bus.Bus
	log      *logger.Logger
}

// NewRunner assembles a benchmark run over the given store. embedder, sink
// and eventBus are optional.
func NewRunner(cfg RunnerConfig, store backend.Store, embedder embed.Embedder, sink Sink, log *logger.Logger, eventBus bus.Bus) *Runner {
	// Normalize here so the persisted workload reflects the effective values.
	if cfg.Indexer.BatchSize <= 0 {
		cfg.Indexer.BatchSize = DefaultBatchSize
	}
	if cfg.Querier.TopK <= 0 {
		cfg.Querier.TopK = DefaultTopK
	}
	if cfg.Querier.Concurrency <= 0 {
		cfg.Querier.Concurrency = 1
	}

	return &Runner{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		sink:     sink,
		bus:      eventBus,
		log:      log,
	}
}

// Run executes the benchmark and returns the aggregated result. When the
// query phase aborts mid-run the partial result is still aggregated and
// persisted before the error is returned, so no completed measurement is
// lost. The store is always closed before returning.
func (r *Runner) Run(ctx context.Context, docs []dataset.Document, queries []dataset.Query, judgments dataset.Judgments) (result *Result, err error) {
	defer func() {
		if closeErr := r.store.Close(); closeErr != nil {
			r.log.Warn("store close failed", "error", closeErr)
		}
	}()

	// Validate before any backend call so malformed input never leaves a
	// half-provisioned collection behind.
	dim, err := dataset.Dimension(docs)
	if err != nil {
		return nil, err
	}
	if err := dataset.ValidateQueries(queries, dim); err != nil {
		return nil, err
	}

	r.log.Info("benchmark run starting",
		"dataset", r.cfg.Context.Dataset,
		"backend", r.cfg.Backend.Name,
		"documents", len(docs),
		"queries", len(queries))

	indexer := NewIndexer(r.cfg.Indexer, r.store, r.log.WithBackend(r.cfg.Backend.Name), r.bus)
	indexStats, err := indexer.Index(ctx, docs)
	if err != nil {
		return nil, err
	}

	querier := NewQuerier(r.cfg.Querier, r.store, r.embedder, r.log.WithBackend(r.cfg.Backend.Name), r.bus)
	queryStats, queryErr := querier.Run(ctx, queries, judgments)

	result = Aggregate(AggregateInput{
		Context:   r.cfg.Context,
		Backend:   r.cfg.Backend,
		Workload:  r.workload(),
		Index:     indexStats,
		Query:     queryStats,
		GitCommit: gitinfo.ShortCommit(),
		Notes:     r.cfg.Notes,
	})

	r.persist(result)
	r.publishCompleted(ctx, result)

	if queryErr != nil {
		return result, queryErr
	}

	if !r.cfg.KeepData {
		if clearErr := r.store.Clear(ctx); clearErr != nil {
			r.log.Warn("post-run clear failed", "error", clearErr)
		}
	}

	r.log.Info("benchmark run complete",
		"run_id", result.Meta.RunID,
		"recall", result.Retrieval.Recall,
		"ndcg", result.Retrieval.NDCG,
		"qps", result.Performance.QPS)

	return result, nil
}

func (r *Runner) workload() Workload {
	return Workload{
		TopK:          r.cfg.Querier.TopK,
		BatchSize:     r.cfg.Indexer.BatchSize,
		Concurrency:   r.cfg.Querier.Concurrency,
		WarmupQueries: r.cfg.Querier.Warmup,
	}
}

func (r *Runner) persist(result *Result) {
	if r.sink == nil {
		return
	}
	path, err := r.sink.Persist(result)
	if err != nil {
		r.log.Error("result persist failed", "error", err)
		return
	}
	r.log.Info("result persisted", "path", path)
}

func (r *Runner) publishCompleted(ctx context.Context, result *Result) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(ctx, bus.TopicRunCompleted,
		bus.NewEvent("run.completed", "runner", result))
}
