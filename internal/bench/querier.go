package bench

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bus"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/embed"
	"github.com/vecbench/vecbench/internal/evaluation"
	"github.com/vecbench/vecbench/internal/pkg/errors"
	"github.com/vecbench/vecbench/internal/pkg/logger"
)

// DefaultTopK is the retrieval metric cutoff.
const DefaultTopK = 10

// QuerierConfig configures the query pipeline.
type QuerierConfig struct {
	// TopK is the search depth and metric cutoff.
	TopK int

	// Concurrency is the query worker count. 1 runs queries strictly
	// sequentially, which is required for deterministic fixtures.
	Concurrency int

	// Warmup is the number of queries executed before measurement starts
	// to prime backend caches; their outcomes are discarded.
	Warmup int
}

// Querier evaluates queries against a backend and scores each ranked result
// list against the ground truth. Backends are assumed safe for concurrent
// Search calls, so workers share one store instance.
type Querier struct {
	cfg      QuerierConfig
	store    backend.Store
	embedder embed.Embedder
	bus      bus.Bus
	log      *logger.Logger
}

// NewQuerier creates a query pipeline over the given store.
// embedder is optional and only used for queries without pre-computed
// vectors; eventBus is optional.
func NewQuerier(cfg QuerierConfig, store backend.Store, embedder embed.Embedder, log *logger.Logger, eventBus bus.Bus) *Querier {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Querier{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		bus:      eventBus,
		log:      log,
	}
}

// Run evaluates every query that has a non-empty relevant set, in ascending
// query-id order. A search failure aborts the phase; outcomes computed
// before the failure remain valid and are returned with Partial set.
func (q *Querier) Run(ctx context.Context, queries []dataset.Query, judgments dataset.Judgments) (*QueryStats, error) {
	evaluable := judgments.Evaluable(queries)
	stats := &QueryStats{}

	if len(evaluable) == 0 {
		q.log.Warn("no evaluable queries: every query id is missing from the judgments or has an empty relevant set")
		return stats, nil
	}

	if err := q.warmup(ctx, evaluable); err != nil {
		stats.Partial = true
		return stats, err
	}

	start := time.Now()
	var err error
	if q.cfg.Concurrency == 1 {
		err = q.runSequential(ctx, evaluable, judgments, stats)
	} else {
		err = q.runConcurrent(ctx, evaluable, judgments, stats)
	}
	stats.WallTime = time.Since(start)

	if err != nil {
		stats.Partial = true
		return stats, err
	}

	q.log.Info("query phase complete",
		"queries", len(stats.Outcomes),
		"wall_time_sec", stats.WallTime.Seconds(),
		"concurrency", q.cfg.Concurrency)

	return stats, nil
}

func (q *Querier) runSequential(ctx context.Context, queries []dataset.Query, judgments dataset.Judgments, stats *QueryStats) error {
	for _, query := range queries {
		outcome, err := q.evaluate(ctx, query, judgments)
		if err != nil {
			return err
		}
		stats.Outcomes = append(stats.Outcomes, outcome)
	}
	return nil
}

// runConcurrent fans queries out over a bounded worker pool. Outcome order
// is arrival order; aggregation does not depend on it.
func (q *Querier) runConcurrent(ctx context.Context, queries []dataset.Query, judgments dataset.Judgments, stats *QueryStats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)

	var mu sync.Mutex
	for _, query := range queries {
		g.Go(func() error {
			outcome, err := q.evaluate(ctx, query, judgments)
			if err != nil {
				return err
			}

			mu.Lock()
			stats.Outcomes = append(stats.Outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// warmup executes up to cfg.Warmup searches to prime backend caches.
// Outcomes are discarded and excluded from all reported figures.
func (q *Querier) warmup(ctx context.Context, queries []dataset.Query) error {
	n := q.cfg.Warmup
	if n > len(queries) {
		n = len(queries)
	}

	for i := 0; i < n; i++ {
		if _, err := q.evaluate(ctx, queries[i], nil); err != nil {
			return err
		}
	}

	if n > 0 {
		q.log.Debug("warm-up complete", "queries", n)
	}
	return nil
}

// evaluate runs one query end to end. The latency figure covers the search
// call only; embedding time, when a vector is generated on the fly, is
// recorded separately.
func (q *Querier) evaluate(ctx context.Context, query dataset.Query, judgments dataset.Judgments) (Outcome, error) {
	vector := query.Embedding
	embedMs := 0.0

	if len(vector) == 0 {
		if q.embedder == nil {
			return Outcome{}, errors.QueryError(query.ID,
				errors.ValidationError("query has no embedding and no embedder is configured"))
		}

		embedStart := time.Now()
		var err error
		vector, err = q.embedder.Embed(ctx, query.Text)
		if err != nil {
			return Outcome{}, errors.QueryError(query.ID, err)
		}
		embedMs = float64(time.Since(embedStart).Microseconds()) / 1000.0
	}

	searchStart := time.Now()
	results, err := q.store.Search(ctx, vector, q.cfg.TopK)
	if err != nil {
		return Outcome{}, errors.QueryError(query.ID, err)
	}
	latencyMs := float64(time.Since(searchStart).Microseconds()) / 1000.0

	outcome := Outcome{
		QueryID:   query.ID,
		LatencyMs: latencyMs,
		EmbedMs:   embedMs,
	}

	// nil judgments marks a warm-up pass: search only, no scoring.
	if judgments != nil {
		retrieved := make([]string, len(results))
		for i, r := range results {
			retrieved[i] = r.ID
		}
		truth := evaluation.NewTruthSet(judgments.Relevant(query.ID)...)

		outcome.Recall = evaluation.RecallAtK(truth, retrieved, q.cfg.TopK)
		outcome.MRR = evaluation.MRRAtK(truth, retrieved, q.cfg.TopK)
		outcome.NDCG = evaluation.NDCGAtK(truth, retrieved, q.cfg.TopK)
		outcome.Precision = evaluation.PrecisionAtK(truth, retrieved, q.cfg.TopK)

		q.publishOutcome(ctx, outcome)
	}

	return outcome, nil
}

func (q *Querier) publishOutcome(ctx context.Context, outcome Outcome) {
	if q.bus == nil {
		return
	}
	_ = q.bus.Publish(ctx, bus.TopicQueryCompleted,
		bus.NewEvent("query.completed", "querier", outcome))
}
