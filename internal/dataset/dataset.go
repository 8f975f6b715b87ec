// Package dataset defines the corpus, query, and relevance-judgment inputs
// a benchmark run consumes, plus loaders for the common file formats.
package dataset

import (
	"sort"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// Document is one corpus entry with its pre-computed embedding. Documents
// are created at ingestion and immutable for the duration of a run.
type Document struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"emb"`
}

// Query is one evaluation query with its pre-computed embedding. Embedding
// may be empty when an external embedder fills it at query time.
type Query struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"emb,omitempty"`
}

// Judgments maps a query ID to its relevant document IDs. Only positive
// judgments are kept; queries with empty relevant sets carry no signal and
// are excluded from evaluation.
type Judgments map[string][]string

// Relevant returns the relevant document IDs for a query.
func (j Judgments) Relevant(queryID string) []string {
	return j[queryID]
}

// Evaluable filters queries to those with a non-empty relevant set, sorted
// by query ID for a deterministic evaluation order.
func (j Judgments) Evaluable(queries []Query) []Query {
	out := make([]Query, 0, len(queries))
	for _, q := range queries {
		if len(j[q.ID]) > 0 {
			out = append(out, q)
		}
	}

	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Dimension determines the run's vector dimension from the first document
// and verifies every other document matches it.
func Dimension(docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, errors.ValidationError("corpus is empty")
	}

	dim := len(docs[0].Embedding)
	if dim == 0 {
		return 0, errors.ValidationError("first document has no embedding")
	}

	for _, doc := range docs[1:] {
		if len(doc.Embedding) != dim {
			return 0, errors.DimensionError(dim, len(doc.Embedding)).
				WithDetail("document_id", doc.ID)
		}
	}

	return dim, nil
}

// ValidateQueries checks that every query embedding matches the corpus
// dimension. Queries without embeddings are allowed; the query pipeline
// embeds them on the fly.
func ValidateQueries(queries []Query, dim int) error {
	for _, q := range queries {
		if len(q.Embedding) == 0 {
			continue
		}
		if len(q.Embedding) != dim {
			return errors.DimensionError(dim, len(q.Embedding)).
				WithDetail("query_id", q.ID)
		}
	}
	return nil
}
