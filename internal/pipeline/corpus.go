package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pulmoprint/internal/model"
)

// Item is one labelled image of a corpus.
type Item struct {
	Path  string      `json:"path"`
	Label string      `json:"label"`
	Class model.Class `json:"-"`
}

// Corpus is an ordered list of labelled images.
type Corpus []Item

// Counts returns the number of items per class.
func (c Corpus) Counts() (normal, anomaly int) {
	for _, it := range c {
		if it.Class == model.ClassAnomaly {
			anomaly++
		} else {
			normal++
		}
	}
	return normal, anomaly
}

// LoadCorpus reads a JSON manifest [{"path": ..., "label": ...}]. Relative
// paths are resolved against the manifest's directory.
func LoadCorpus(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	dir := filepath.Dir(path)
	for i := range items {
		if items[i].Path == "" {
			return nil, fmt.Errorf("corpus item %d has no path", i)
		}
		class, err := model.ParseClass(items[i].Label)
		if err != nil {
			return nil, fmt.Errorf("corpus item %d: %w", i, err)
		}
		items[i].Class = class
		if !filepath.IsAbs(items[i].Path) {
			items[i].Path = filepath.Join(dir, items[i].Path)
		}
	}
	return Corpus(items), nil
}
