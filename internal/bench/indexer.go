package bench

import (
	"context"
	"time"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bus"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/pkg/errors"
	"github.com/vecbench/vecbench/internal/pkg/logger"
)

// DefaultBatchSize bounds peak upsert request size so large corpora don't
// trip backend timeouts.
const DefaultBatchSize = 1000

// IndexerConfig configures the indexing pipeline.
type IndexerConfig struct {
	// BatchSize is the number of documents per upsert call.
	BatchSize int
}

// Indexer loads a document corpus into one backend instance. It owns the
// corpus for the duration of a run and issues setup/upsert strictly
// sequentially; backends are not assumed safe for concurrent writes.
type Indexer struct {
	cfg   IndexerConfig
	store backend.Store
	bus   bus.Bus
	log   *logger.Logger
}

// NewIndexer creates an indexing pipeline over the given store.
// eventBus is optional - if nil, progress publishing is disabled.
func NewIndexer(cfg IndexerConfig, store backend.Store, log *logger.Logger, eventBus bus.Bus) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Indexer{
		cfg:   cfg,
		store: store,
		bus:   eventBus,
		log:   log,
	}
}

// IndexProgress is the payload published per completed batch.
type IndexProgress struct {
	Indexed int `json:"indexed"`
	Total   int `json:"total"`
}

// Index provisions the store and upserts the corpus in fixed-size batches,
// preserving the corpus's natural order for reproducibility.
func (ix *Indexer) Index(ctx context.Context, docs []dataset.Document) (*IndexStats, error) {
	dim, err := dataset.Dimension(docs)
	if err != nil {
		return nil, err
	}

	if err := ix.store.Setup(ctx, dim); err != nil {
		return nil, err
	}

	start := time.Now()
	batches := 0

	for offset := 0; offset < len(docs); offset += ix.cfg.BatchSize {
		end := offset + ix.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]

		ids := make([]string, len(batch))
		vectors := make([][]float32, len(batch))
		metas := make([]map[string]string, len(batch))
		for i, doc := range batch {
			ids[i] = doc.ID
			vectors[i] = doc.Embedding
			metas[i] = map[string]string{"doc_id": doc.DocID}
		}

		if err := ix.store.Upsert(ctx, ids, vectors, metas); err != nil {
			// No rollback: Setup's wipe step makes a re-run start clean.
			return nil, errors.IndexingError(offset, err)
		}
		batches++

		ix.log.Debug("indexed batch", "indexed", end, "total", len(docs))
		ix.publishProgress(ctx, IndexProgress{Indexed: end, Total: len(docs)})
	}

	elapsed := time.Since(start)
	stats := &IndexStats{
		Documents: len(docs),
		Batches:   batches,
		Dim:       dim,
		BuildTime: elapsed,
	}
	if elapsed > 0 {
		stats.UpsertRateVPS = float64(len(docs)) / elapsed.Seconds()
	}

	ix.log.Info("indexing complete",
		"documents", stats.Documents,
		"batches", stats.Batches,
		"build_time_sec", elapsed.Seconds(),
		"upsert_rate_vps", stats.UpsertRateVPS)

	return stats, nil
}

func (ix *Indexer) publishProgress(ctx context.Context, progress IndexProgress) {
	if ix.bus == nil {
		return
	}
	_ = ix.bus.Publish(ctx, bus.TopicIndexProgress,
		bus.NewEvent("index.progress", "indexer", progress))
}
