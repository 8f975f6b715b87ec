package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// RedisStore is the RediSearch-backed variant using an HNSW vector index
// over hash keys. RediSearch reports cosine distance; scores are converted
// to similarity as 1 - distance. That conversion is a known approximation:
// it keeps the ranking direction consistent across backends but the absolute
// values are not comparable with backends that report native similarity.
type RedisStore struct {
	client *redis.Client
	cfg    Config

	mu     sync.Mutex
	dim    int
	closed bool
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	return &RedisStore{client: client, cfg: cfg}, nil
}

// Setup drops any existing index and its documents, then creates a fresh
// HNSW cosine index for dim-length FLOAT32 vectors.
func (s *RedisStore) Setup(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("redis store is closed")
	}
	if dim < 1 {
		return errors.ContractViolationError("dimension must be positive")
	}

	if err := s.dropIndex(ctx); err != nil {
		return errors.ProvisioningError(TypeRediSearch, err)
	}

	err := s.client.FTCreate(ctx, s.cfg.Namespace,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{s.keyPrefix()},
		},
		&redis.FieldSchema{
			FieldName: "doc_id",
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: "vector",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				HNSWOptions: &redis.FTHNSWOptions{
					Type:           "FLOAT32",
					Dim:            dim,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil {
		return errors.ProvisioningError(TypeRediSearch, err)
	}

	s.dim = dim
	return nil
}

// Upsert writes one hash per document with the vector as raw FLOAT32 bytes.
func (s *RedisStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("redis store is closed")
	}
	if err := validateUpsert(s.dim, ids, vectors, metas); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for i, id := range ids {
		fields := map[string]interface{}{
			"vector": encodeVector(vectors[i]),
		}
		for k, v := range metas[i] {
			fields[k] = v
		}
		pipe.HSet(ctx, s.keyPrefix()+id, fields)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "redis upsert failed", err)
	}
	return nil
}

// Search runs a KNN query sorted by ascending cosine distance.
func (s *RedisStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, errors.ServiceUnavailableError("redis store is closed")
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	query := fmt.Sprintf("*=>[KNN %d @vector $vec AS score]", k)
	res, err := s.client.FTSearchWithArgs(ctx, s.cfg.Namespace, query, &redis.FTSearchOptions{
		Params:         map[string]interface{}{"vec": encodeVector(vector)},
		SortBy:         []redis.FTSearchSortBy{{FieldName: "score", Asc: true}},
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          k,
	}).Result()
	if err != nil {
		if isMissingIndex(err) {
			return []SearchResult{}, nil
		}
		return nil, errors.Wrap(errors.CodeUnavailable, "redis search failed", err)
	}

	results := make([]SearchResult, 0, len(res.Docs))
	for _, doc := range res.Docs {
		result := SearchResult{
			ID:       strings.TrimPrefix(doc.ID, s.keyPrefix()),
			Metadata: map[string]string{},
		}

		for field, value := range doc.Fields {
			switch field {
			case "score":
				if distance, err := strconv.ParseFloat(value, 64); err == nil {
					result.Score = 1.0 - distance
				}
			case "vector":
				// Raw bytes, not meaningful as metadata
			default:
				result.Metadata[field] = value
			}
		}

		results = append(results, result)
	}
	return results, nil
}

// Clear drops the index together with its documents. Safe when the index
// does not exist.
func (s *RedisStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("redis store is closed")
	}

	if err := s.dropIndex(ctx); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to drop index", err)
	}
	return nil
}

// Close releases the connection pool. Safe to call multiple times.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.client.Close()
}

func (s *RedisStore) keyPrefix() string {
	return s.cfg.Namespace + ":"
}

func (s *RedisStore) dropIndex(ctx context.Context) error {
	err := s.client.FTDropIndexWithArgs(ctx, s.cfg.Namespace, &redis.FTDropIndexOptions{
		DeleteDocs: true,
	}).Err()
	if err != nil && !isMissingIndex(err) {
		return err
	}
	return nil
}

func isMissingIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}
