package backend

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// QdrantStore is the Qdrant-backed variant. Each run owns one collection
// under a cosine metric; Setup drops and recreates it so re-runs start from
// an empty namespace.
type QdrantStore struct {
	client *qdrant.Client
	cfg    Config

	mu     sync.Mutex
	dim    int
	closed bool
}

// NewQdrantStore connects to the Qdrant gRPC endpoint.
func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create qdrant client", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Setup drops any existing collection and recreates it for dim-length
// vectors under the cosine metric.
func (s *QdrantStore) Setup(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("qdrant store is closed")
	}
	if dim < 1 {
		return errors.ContractViolationError("dimension must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return errors.ProvisioningError(TypeQdrant, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Namespace); err != nil {
			return errors.ProvisioningError(TypeQdrant, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errors.ProvisioningError(TypeQdrant, err)
	}

	s.dim = dim
	return nil
}

// Upsert writes points keyed by deterministic UUIDs derived from ids.
// Qdrant only accepts numeric or UUID point IDs, so the caller's ID is
// carried in the payload and restored on search.
func (s *QdrantStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("qdrant store is closed")
	}

	if err := validateUpsert(s.dim, ids, vectors, metas); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		payload := map[string]any{"id": id}
		for k, v := range metas[i] {
			payload[k] = v
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Namespace,
		Points:         points,
		Wait:           qdrant.PtrOf(true), // Wait for indexing
	})
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "qdrant upsert failed", err)
	}

	return nil
}

// Search runs a dense query. Qdrant reports cosine similarity directly, so
// scores pass through unchanged.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, errors.ServiceUnavailableError("qdrant store is closed")
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Namespace,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "qdrant query failed", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, scoredPointToResult(p))
	}
	return results, nil
}

// Clear drops the run's collection. Safe when the collection does not exist.
func (s *QdrantStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("qdrant store is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to list collections", err)
	}
	if !exists {
		return nil
	}

	if err := s.client.DeleteCollection(ctx, s.cfg.Namespace); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to delete collection", err)
	}
	return nil
}

// Close closes the client connection. Safe to call multiple times.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.client.Close()
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, err
	}

	for _, name := range collections {
		if name == s.cfg.Namespace {
			return true, nil
		}
	}
	return false, nil
}

// pointUUID derives a stable UUID from a document ID so re-indexing the same
// corpus overwrites rather than duplicates.
func pointUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vecbench:"+id)).String()
}

func scoredPointToResult(p *qdrant.ScoredPoint) SearchResult {
	result := SearchResult{
		Score:    float64(p.GetScore()),
		Metadata: map[string]string{},
	}

	for key, value := range p.GetPayload() {
		sv, ok := value.GetKind().(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		if key == "id" {
			result.ID = sv.StringValue
			continue
		}
		result.Metadata[key] = sv.StringValue
	}

	// Fall back to the point UUID when the payload carries no original ID.
	if result.ID == "" {
		if uid := p.GetId().GetUuid(); uid != "" {
			result.ID = uid
		}
	}

	return result
}
