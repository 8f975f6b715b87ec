package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDimension(t *testing.T) {
	docs := []Document{
		{ID: "d1", Embedding: []float32{1, 2, 3}},
		{ID: "d2", Embedding: []float32{4, 5, 6}},
	}

	dim, err := Dimension(docs)
	if err != nil {
		t.Fatalf("Dimension() error = %v", err)
	}
	if dim != 3 {
		t.Errorf("dim = %d, want 3", dim)
	}
}

func TestDimension_Mismatch(t *testing.T) {
	docs := []Document{
		{ID: "d1", Embedding: []float32{1, 2, 3}},
		{ID: "d2", Embedding: []float32{4, 5}},
	}

	_, err := Dimension(docs)
	if !errors.IsCode(err, errors.CodeDimension) {
		t.Errorf("Dimension() error = %v, want DIMENSION_ERROR", err)
	}
}

func TestDimension_EmptyCorpus(t *testing.T) {
	_, err := Dimension(nil)
	if !errors.IsValidation(err) {
		t.Errorf("Dimension(nil) error = %v, want VALIDATION_ERROR", err)
	}
}

func TestValidateQueries(t *testing.T) {
	queries := []Query{
		{ID: "q1", Embedding: []float32{1, 2}},
		{ID: "q2"}, // no embedding, embedded later
	}

	if err := ValidateQueries(queries, 2); err != nil {
		t.Errorf("ValidateQueries() error = %v", err)
	}

	bad := []Query{{ID: "q3", Embedding: []float32{1, 2, 3}}}
	if err := ValidateQueries(bad, 2); !errors.IsCode(err, errors.CodeDimension) {
		t.Errorf("ValidateQueries() error = %v, want DIMENSION_ERROR", err)
	}
}

func TestJudgments_Evaluable(t *testing.T) {
	judgments := Judgments{
		"q2": {"d1"},
		"q1": {"d2", "d3"},
		"q3": {},
	}
	queries := []Query{
		{ID: "q3"}, // empty relevant set, excluded
		{ID: "q2"},
		{ID: "q1"},
		{ID: "q4"}, // absent from judgments, excluded
	}

	got := judgments.Evaluable(queries)
	if len(got) != 2 {
		t.Fatalf("Evaluable() returned %d queries, want 2", len(got))
	}
	// Sorted by query ID for deterministic evaluation order.
	if got[0].ID != "q1" || got[1].ID != "q2" {
		t.Errorf("Evaluable() order = [%s %s], want [q1 q2]", got[0].ID, got[1].ID)
	}
}

func TestLoadCorpus(t *testing.T) {
	path := writeFile(t, "corpus.jsonl", `{"id":"1","doc_id":"d1","text":"alpha","emb":[0.1,0.2]}
{"id":"2","doc_id":"d2","text":"beta","emb":[0.3,0.4]}
`)

	docs, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].DocID != "d1" || docs[1].Text != "beta" {
		t.Errorf("unexpected documents: %+v", docs)
	}
	if len(docs[0].Embedding) != 2 {
		t.Errorf("embedding length = %d, want 2", len(docs[0].Embedding))
	}
}

func TestLoadCorpus_BadJSON(t *testing.T) {
	path := writeFile(t, "corpus.jsonl", "{not json}\n")

	if _, err := LoadCorpus(path); err == nil {
		t.Error("LoadCorpus() should fail on malformed JSON")
	}
}

func TestLoadQueries(t *testing.T) {
	path := writeFile(t, "queries.jsonl", `{"_id":"q1","text":"what is alpha"}

{"_id":"q2","text":"what is beta","emb":[0.5,0.6]}
`)

	queries, err := LoadQueries(path)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("got %d queries, want 2 (blank lines skipped)", len(queries))
	}
	if queries[0].ID != "q1" || queries[1].ID != "q2" {
		t.Errorf("unexpected queries: %+v", queries)
	}
}

func TestLoadJudgments(t *testing.T) {
	path := writeFile(t, "qrels.tsv", "query-id\tcorpus-id\tscore\n"+
		"q1\td1\t2\n"+
		"q1\td2\t0\n"+ // zero score excluded
		"q2\td3\t1\n"+
		"q3\td4\t-1\n") // negative score excluded

	judgments, err := LoadJudgments(path)
	if err != nil {
		t.Fatalf("LoadJudgments() error = %v", err)
	}

	if len(judgments["q1"]) != 1 || judgments["q1"][0] != "d1" {
		t.Errorf("q1 relevant = %v, want [d1]", judgments["q1"])
	}
	if len(judgments["q2"]) != 1 {
		t.Errorf("q2 relevant = %v, want [d3]", judgments["q2"])
	}
	if _, ok := judgments["q3"]; ok {
		t.Error("q3 has only non-positive judgments and must be absent")
	}
}

func TestLoadJudgments_MalformedRow(t *testing.T) {
	path := writeFile(t, "qrels.tsv", "query-id\tcorpus-id\tscore\nq1\td1\n")

	if _, err := LoadJudgments(path); err == nil {
		t.Error("LoadJudgments() should fail on a short row")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("LoadCorpus() should fail on a missing file")
	}
}
