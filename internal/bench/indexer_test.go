package bench

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/pkg/errors"
	"github.com/vecbench/vecbench/internal/pkg/logger"
)

// fakeStore records calls and supports scripted failures. Shared by the
// indexer, querier, and runner tests.
type fakeStore struct {
	mu          sync.Mutex
	setupDims   []int
	upsertIDs   [][]string
	searchCalls int
	clearCalls  int
	closeCalls  int

	failUpsertCall int // 1-based upsert call to fail, 0 = never
	failSearchCall int // 1-based search call to fail, 0 = never
	searchFn       func(vector []float32, k int) ([]backend.SearchResult, error)
}

func (s *fakeStore) Setup(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setupDims = append(s.setupDims, dim)
	return nil
}

func (s *fakeStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpsertCall > 0 && len(s.upsertIDs)+1 == s.failUpsertCall {
		return stderrors.New("upsert rejected")
	}

	copied := make([]string, len(ids))
	copy(copied, ids)
	s.upsertIDs = append(s.upsertIDs, copied)
	return nil
}

func (s *fakeStore) Search(ctx context.Context, vector []float32, k int) ([]backend.SearchResult, error) {
	s.mu.Lock()
	s.searchCalls++
	call := s.searchCalls
	fn := s.searchFn
	s.mu.Unlock()

	if s.failSearchCall > 0 && call == s.failSearchCall {
		return nil, stderrors.New("search backend unavailable")
	}
	if fn != nil {
		return fn(vector, k)
	}
	return rankedResults("d2", "d1", "d4", "d3"), nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func rankedResults(ids ...string) []backend.SearchResult {
	out := make([]backend.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = backend.SearchResult{ID: id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func makeDocs(n, dim int) []dataset.Document {
	docs := make([]dataset.Document, n)
	for i := range docs {
		emb := make([]float32, dim)
		emb[0] = float32(i + 1)
		docs[i] = dataset.Document{
			ID:        fmt.Sprintf("doc-%04d", i),
			DocID:     fmt.Sprintf("d%d", i),
			Embedding: emb,
		}
	}
	return docs
}

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func TestIndexer_BatchBoundaries(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(IndexerConfig{BatchSize: 1000}, store, testLogger(), nil)

	stats, err := ix.Index(context.Background(), makeDocs(2500, 4))
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if len(store.upsertIDs) != 3 {
		t.Fatalf("upsert calls = %d, want 3", len(store.upsertIDs))
	}
	for i, want := range []int{1000, 1000, 500} {
		if got := len(store.upsertIDs[i]); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
	}

	// Natural corpus order, no reordering across batch boundaries.
	if store.upsertIDs[0][0] != "doc-0000" || store.upsertIDs[1][0] != "doc-1000" || store.upsertIDs[2][0] != "doc-2000" {
		t.Errorf("batches out of order: %q %q %q",
			store.upsertIDs[0][0], store.upsertIDs[1][0], store.upsertIDs[2][0])
	}

	if len(store.setupDims) != 1 || store.setupDims[0] != 4 {
		t.Errorf("setup dims = %v, want [4]", store.setupDims)
	}
	if stats.Documents != 2500 || stats.Batches != 3 || stats.Dim != 4 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestIndexer_ExactMultipleOfBatch(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(IndexerConfig{BatchSize: 500}, store, testLogger(), nil)

	stats, err := ix.Index(context.Background(), makeDocs(1000, 3))
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if stats.Batches != 2 {
		t.Errorf("batches = %d, want 2", stats.Batches)
	}
	for i, batch := range store.upsertIDs {
		if len(batch) != 500 {
			t.Errorf("batch %d size = %d, want 500", i, len(batch))
		}
	}
}

func TestIndexer_UpsertFailureCarriesOffset(t *testing.T) {
	store := &fakeStore{failUpsertCall: 2}
	ix := NewIndexer(IndexerConfig{BatchSize: 1000}, store, testLogger(), nil)

	_, err := ix.Index(context.Background(), makeDocs(2500, 4))
	if err == nil {
		t.Fatal("Index() should fail on second batch")
	}
	if !errors.IsCode(err, errors.CodeIndexing) {
		t.Fatalf("error code = %v, want CodeIndexing", err)
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		t.Fatalf("error is not an AppError: %v", err)
	}
	if got := appErr.Details["batch_offset"]; got != "1000" {
		t.Errorf("batch_offset = %q, want \"1000\"", got)
	}

	// First batch landed before the failure.
	if len(store.upsertIDs) != 1 {
		t.Errorf("completed upserts = %d, want 1", len(store.upsertIDs))
	}
}

func TestIndexer_EmptyCorpus(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(IndexerConfig{}, store, testLogger(), nil)

	if _, err := ix.Index(context.Background(), nil); err == nil {
		t.Fatal("Index() of empty corpus should fail")
	}
	if len(store.setupDims) != 0 {
		t.Error("Setup should not run for an empty corpus")
	}
}

func TestIndexer_DimensionMismatchBeforeSetup(t *testing.T) {
	docs := makeDocs(3, 4)
	docs[2].Embedding = make([]float32, 8)

	store := &fakeStore{}
	ix := NewIndexer(IndexerConfig{}, store, testLogger(), nil)

	_, err := ix.Index(context.Background(), docs)
	if !errors.IsCode(err, errors.CodeDimension) {
		t.Fatalf("error = %v, want CodeDimension", err)
	}
	if len(store.setupDims) != 0 {
		t.Error("Setup should not run when the corpus is inconsistent")
	}
}

func TestIndexer_DefaultBatchSize(t *testing.T) {
	ix := NewIndexer(IndexerConfig{}, &fakeStore{}, testLogger(), nil)
	if ix.cfg.BatchSize != DefaultBatchSize {
		t.Errorf("batch size = %d, want %d", ix.cfg.BatchSize, DefaultBatchSize)
	}
}
