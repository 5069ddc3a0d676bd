// Package ingest loads datasets of work items and workers, either from
// JSON files or from a GitHub repository.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/clintrovert/sarek/pkg/types"
)

// DecodeItems reads a JSON array of work items and validates it.
func DecodeItems(r io.Reader) ([]types.WorkItem, error) {
	var items []types.WorkItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// DecodeWorkers reads a JSON array of workers and validates it.
func DecodeWorkers(r io.Reader) ([]types.Worker, error) {
	var workers []types.Worker
	if err := json.NewDecoder(r).Decode(&workers); err != nil {
		return nil, fmt.Errorf("failed to decode workers: %w", err)
	}
	if err := ValidateWorkers(workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// LoadItemsFile loads and validates work items from a JSON file.
func LoadItemsFile(path string) ([]types.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file: %w", err)
	}
	defer f.Close()
	return DecodeItems(f)
}

// LoadWorkersFile loads and validates workers from a JSON file.
func LoadWorkersFile(path string) ([]types.Worker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workers file: %w", err)
	}
	defer f.Close()
	return DecodeWorkers(f)
}

// ValidateItems enforces non-empty unique IDs and non-empty titles.
func ValidateItems(items []types.WorkItem) error {
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		if seen[it.ID] {
			return fmt.Errorf("duplicate item id %q", it.ID)
		}
		seen[it.ID] = true
		if it.Title == "" {
			return fmt.Errorf("item %q has no title", it.ID)
		}
	}
	return nil
}

// ValidateWorkers enforces non-empty unique IDs and non-empty names.
func ValidateWorkers(workers []types.Worker) error {
	seen := make(map[string]bool, len(workers))
	for i, w := range workers {
		if w.ID == "" {
			return fmt.Errorf("worker %d has no id", i)
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate worker id %q", w.ID)
		}
		seen[w.ID] = true
		if w.Name == "" {
			return fmt.Errorf("worker %q has no name", w.ID)
		}
	}
	return nil
}
