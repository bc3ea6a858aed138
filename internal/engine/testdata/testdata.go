package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labeled message for classification validation. Label 1
// marks a field-operation report, 0 anything else.
type CorpusEntry struct {
	Message     string `json:"message"`
	Label       int    `json:"label"`
	Description string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	return parseCorpus(corpusJSON, "corpus.json")
}

// LoadCorpusFile parses a corpus in the same format from disk.
func LoadCorpusFile(path string) ([]CorpusEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return parseCorpus(data, path)
}

func parseCorpus(data []byte, name string) ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	for i, e := range entries {
		if e.Label != 0 && e.Label != 1 {
			return nil, fmt.Errorf("parse %s: entry %d has label %d, want 0 or 1", name, i, e.Label)
		}
	}
	return entries, nil
}
