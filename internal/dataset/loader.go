package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// Large corpora carry long text fields; size the scanner buffer accordingly.
const maxLineBytes = 16 * 1024 * 1024

// LoadCorpus reads documents from a JSONL file, one document per line.
func LoadCorpus(path string) ([]Document, error) {
	var docs []Document

	err := scanLines(path, func(lineNo int, line []byte) error {
		var doc Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "loading corpus", err)
	}

	return docs, nil
}

// LoadQueries reads queries from a JSONL file, one query per line.
func LoadQueries(path string) ([]Query, error) {
	var queries []Query

	err := scanLines(path, func(lineNo int, line []byte) error {
		var q Query
		if err := json.Unmarshal(line, &q); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		queries = append(queries, q)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "loading queries", err)
	}

	return queries, nil
}

// LoadJudgments reads relevance judgments from a TSV qrels file with a
// header row and query-id, corpus-id, score columns. Only positive scores
// count as relevant; zero and negative judgments are dropped.
func LoadJudgments(path string) (Judgments, error) {
	judgments := Judgments{}
	header := true

	err := scanLines(path, func(lineNo int, line []byte) error {
		if header {
			header = false
			return nil
		}

		fields := strings.Split(string(line), "\t")
		if len(fields) < 3 {
			return fmt.Errorf("line %d: expected 3 tab-separated columns, got %d", lineNo, len(fields))
		}

		queryID := strings.TrimSpace(fields[0])
		docID := strings.TrimSpace(fields[1])
		score, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return fmt.Errorf("line %d: invalid score: %w", lineNo, err)
		}

		if score > 0 {
			judgments[queryID] = append(judgments[queryID], docID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "loading judgments", err)
	}

	return judgments, nil
}

func scanLines(path string, handle func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handle(lineNo, []byte(line)); err != nil {
			return err
		}
	}

	return scanner.Err()
}
