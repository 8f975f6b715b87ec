package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vecbench/vecbench/internal/bench"
)

func sampleResult() *bench.Result {
	return &bench.Result{
		Meta: bench.Meta{
			SchemaVersion: bench.SchemaVersion,
			Timestamp:     "2026-08-26T12:00:00Z",
			Runner:        bench.RunnerTag,
			RunID:         "run-1",
		},
		Context: bench.RunContext{
			Dataset:   "fiqa",
			ModelName: "text-embedding-3-small",
		},
		Backend: bench.BackendInfo{Name: "qdrant"},
		Retrieval: bench.Retrieval{
			Recall: 0.82,
			NDCG:   0.76,
		},
	}
}

func TestFileSink_Persist(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}

	path, err := sink.Persist(sampleResult())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	base := filepath.Base(path)
	if base != "fiqa__qdrant__text-embedding-3-small__20260826T120000Z.json" {
		t.Errorf("filename = %q", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result file: %v", err)
	}

	var loaded bench.Result
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("decoding result file: %v", err)
	}
	if loaded.Meta.SchemaVersion != bench.SchemaVersion {
		t.Errorf("schema_version = %q", loaded.Meta.SchemaVersion)
	}
	if loaded.Retrieval.Recall != 0.82 {
		t.Errorf("recall = %v, want 0.82", loaded.Retrieval.Recall)
	}

	// Pretty-printed output, not a single line.
	if !strings.Contains(string(data), "\n  ") {
		t.Error("result file should be indented")
	}
}

func TestFileSink_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")

	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}
	if _, err := sink.Persist(sampleResult()); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"fiqa", "fiqa"},
		{"org/model name", "org-model-name"},
		{"a:b", "a-b"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMemberValue(t *testing.T) {
	tests := []struct {
		member  string
		want    float64
		wantErr bool
	}{
		{"run-1:0.75", 0.75, false},
		{"0.5", 0.5, false},
		{"run:with:colons:1.25", 1.25, false},
		{"run-1:not-a-number", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMemberValue(tt.member)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMemberValue(%q) error = %v, wantErr %v", tt.member, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMemberValue(%q) = %v, want %v", tt.member, got, tt.want)
		}
	}
}
