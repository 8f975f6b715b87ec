// Package evaluation computes information-retrieval quality metrics for
// ranked search results against ground-truth relevance sets.
package evaluation

import "math"

// TruthSet is the set of relevant document IDs for a single query.
type TruthSet map[string]bool

// NewTruthSet builds a TruthSet from document IDs.
func NewTruthSet(ids ...string) TruthSet {
	s := make(TruthSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// RecallAtK calculates the fraction of relevant documents retrieved in the
// top k results.
func RecallAtK(truth TruthSet, retrieved []string, k int) float64 {
	if len(truth) == 0 {
		return 0
	}

	relevant := 0
	for _, id := range truncate(retrieved, k) {
		if truth[id] {
			relevant++
		}
	}

	return float64(relevant) / float64(len(truth))
}

// PrecisionAtK calculates the fraction of the top k results that are relevant.
// Defined as 0 for k = 0.
func PrecisionAtK(truth TruthSet, retrieved []string, k int) float64 {
	if k == 0 {
		return 0
	}

	relevant := 0
	for _, id := range truncate(retrieved, k) {
		if truth[id] {
			relevant++
		}
	}

	return float64(relevant) / float64(k)
}

// MRRAtK calculates the reciprocal of the 1-based rank of the first relevant
// document in the top k results, or 0 if none is found.
func MRRAtK(truth TruthSet, retrieved []string, k int) float64 {
	if len(truth) == 0 {
		return 0
	}

	for i, id := range truncate(retrieved, k) {
		if truth[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK calculates binary-relevance normalized discounted cumulative gain
// within the top k results. A hit at 1-based rank i gains 1/log2(i+1); the
// ideal DCG places min(|truth|, k) relevant documents at the top ranks.
func NDCGAtK(truth TruthSet, retrieved []string, k int) float64 {
	if len(truth) == 0 {
		return 0
	}

	dcg := 0.0
	for i, id := range truncate(retrieved, k) {
		if truth[id] {
			dcg += 1.0 / math.Log2(float64(i+2))
		}
	}

	ideal := len(truth)
	if k < ideal {
		ideal = k
	}

	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}

	// Cannot happen for non-empty truth and k >= 1, but guarded.
	if idcg == 0 {
		return 0
	}

	return dcg / idcg
}

func truncate(retrieved []string, k int) []string {
	if k < 0 {
		return nil
	}
	if k > len(retrieved) {
		k = len(retrieved)
	}
	return retrieved[:k]
}
