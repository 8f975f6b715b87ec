// Package backend provides the storage abstraction over interchangeable
// vector-search backends and the drivers implementing it.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// SearchResult is a single ranked hit returned by a backend, normalized to a
// similarity score where higher means more similar regardless of the
// backend's native metric direction.
type SearchResult struct {
	// ID is the document identifier.
	ID string `json:"id"`

	// Score is the similarity score (higher = more similar).
	Score float64 `json:"score"`

	// Metadata is the payload stored alongside the vector.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is the capability contract every backend variant implements.
// The benchmark core never issues vendor-specific calls outside this
// boundary; similarity-direction and result-shape normalization happen
// inside each driver.
type Store interface {
	// Setup idempotently provisions storage for dim-length vectors under a
	// cosine metric, wiping any pre-existing data in the run's namespace.
	Setup(ctx context.Context, dim int) error

	// Upsert inserts or overwrites entries keyed by ids. Preconditions:
	// len(ids) == len(vectors) == len(metas), and every vector has the
	// dimension passed to Setup.
	Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []map[string]string) error

	// Search returns up to k results ranked by descending similarity.
	// An empty store yields an empty slice, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error)

	// Clear removes all data in the run's namespace. Safe on an empty or
	// non-existent store.
	Clear(ctx context.Context) error

	// Close releases connection resources. Safe to call multiple times.
	Close() error
}

// Config holds connection settings for all backend variants. Only the
// fields of the selected variant are consulted.
type Config struct {
	// Namespace is the collection/index/bucket name scoping the run's data.
	Namespace string

	// Qdrant settings.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool

	// RediSearch settings.
	RedisURL string

	// Bolt settings.
	BoltPath string

	// Timeout bounds each storage operation.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Namespace:  "vectors",
		QdrantHost: "localhost",
		QdrantPort: 6334,
		RedisURL:   "redis://localhost:6379",
		BoltPath:   "vecbench.db",
		Timeout:    30 * time.Second,
	}
}

// validateUpsert enforces the Upsert contract shared by all drivers.
func validateUpsert(dim int, ids []string, vectors [][]float32, metas []map[string]string) error {
	if len(ids) != len(vectors) || len(ids) != len(metas) {
		return errors.ContractViolationError(fmt.Sprintf(
			"mismatched batch lengths: ids=%d vectors=%d metas=%d",
			len(ids), len(vectors), len(metas)))
	}

	for i, vec := range vectors {
		if len(vec) != dim {
			return errors.ContractViolationError(fmt.Sprintf(
				"vector %d has dimension %d, store provisioned for %d", i, len(vec), dim))
		}
	}

	return nil
}
