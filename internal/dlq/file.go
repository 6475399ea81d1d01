package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/signal-site/relay/internal/metrics"
)

// FileQueue writes records as individual JSON files. Single instance
// only; intended for development.
type FileQueue struct {
	basePath string
	mu       sync.Mutex
}

// NewFileQueue creates the base directory if needed and returns a
// file-backed queue.
func NewFileQueue(basePath string) (*FileQueue, error) {
	if basePath == "" {
		basePath = "./dlq"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &FileQueue{basePath: basePath}, nil
}

// Write persists the record as <timestamp>-<id>.json.
func (q *FileQueue) Write(ctx context.Context, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", rec.Timestamp.UTC().Format("20060102T150405"), rec.ID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.WriteFile(filepath.Join(q.basePath, name), data, 0o644); err != nil {
		return fmt.Errorf("write dlq record: %w", err)
	}
	metrics.DLQWrites.WithLabelValues(rec.Reason).Inc()
	return nil
}

// List reads up to limit records, oldest first.
func (q *FileQueue) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if len(records) >= limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(q.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read dlq record %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
