package backend

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

var (
	bucketVectors = []byte("vectors")
	bucketMetas   = []byte("metas")
	bucketConfig  = []byte("config")

	keyDim = []byte("dim")
)

// BoltStore is an embedded backend over bbolt with exhaustive cosine scan.
// It needs no external services, which makes it the reference variant for
// deterministic benchmark fixtures. Ties are broken by ascending document
// ID so repeated searches over an unchanged store rank identically.
type BoltStore struct {
	db  *bolt.DB
	cfg Config

	mu     sync.Mutex
	dim    int
	closed bool
}

// NewBoltStore opens (or creates) the bbolt file at cfg.BoltPath.
func NewBoltStore(cfg Config) (*BoltStore, error) {
	db, err := bolt.Open(cfg.BoltPath, 0600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to open bolt database", err)
	}

	return &BoltStore{db: db, cfg: cfg}, nil
}

// Setup wipes the namespace and provisions buckets for dim-length vectors.
func (s *BoltStore) Setup(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("bolt store is closed")
	}
	if dim < 1 {
		return errors.ContractViolationError("dimension must be positive")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketMetas, bucketConfig} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		dimBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(dimBytes, uint64(dim))
		return tx.Bucket(bucketConfig).Put(keyDim, dimBytes)
	})
	if err != nil {
		return errors.ProvisioningError(TypeBolt, err)
	}

	s.dim = dim
	return nil
}

// Upsert stores vectors and metadata keyed by ids.
func (s *BoltStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("bolt store is closed")
	}
	if err := validateUpsert(s.dim, ids, vectors, metas); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(bucketVectors)
		mb := tx.Bucket(bucketMetas)
		if vb == nil || mb == nil {
			return errors.New(errors.CodeProvisioning, "store not provisioned, call Setup first")
		}

		for i, id := range ids {
			if err := vb.Put([]byte(id), encodeVector(vectors[i])); err != nil {
				return err
			}

			metaBytes, err := json.Marshal(metas[i])
			if err != nil {
				return err
			}
			if err := mb.Put([]byte(id), metaBytes); err != nil {
				return err
			}
		}

		return nil
	})
}

// Search scans all stored vectors and returns the top k by cosine similarity.
func (s *BoltStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, errors.ServiceUnavailableError("bolt store is closed")
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	results := []SearchResult{}

	err := s.db.View(func(tx *bolt.Tx) error {
		vb := tx.Bucket(bucketVectors)
		mb := tx.Bucket(bucketMetas)
		if vb == nil {
			return nil // Empty store, not an error
		}

		return vb.ForEach(func(key, value []byte) error {
			candidate := decodeVector(value)
			score := cosineSimilarity(vector, candidate)

			meta := map[string]string{}
			if mb != nil {
				if metaBytes := mb.Get(key); metaBytes != nil {
					// Corrupt metadata degrades to empty, the hit still counts
					_ = json.Unmarshal(metaBytes, &meta)
				}
			}

			results = append(results, SearchResult{
				ID:       string(key),
				Score:    score,
				Metadata: meta,
			})
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "bolt scan failed", err)
	}

	// Descending similarity, ties broken by ascending ID for reproducibility.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Clear removes all data in the namespace. Safe on an empty store.
func (s *BoltStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ServiceUnavailableError("bolt store is closed")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketMetas, bucketConfig} {
			if tx.Bucket(name) == nil {
				continue
			}
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database handle. Safe to call multiple times.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
