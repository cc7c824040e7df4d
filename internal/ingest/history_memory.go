package ingest

import (
	"context"
	"sync"

	"musicstream/internal/domain"
)

const memoryHistoryMax = 200

// MemoryHistory keeps the most recent download records in memory. It is the
// fallback when no Mongo URI is configured; records do not survive restarts.
type MemoryHistory struct {
	mu      sync.Mutex
	records []domain.DownloadRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Add(ctx context.Context, rec domain.DownloadRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if len(h.records) > memoryHistoryMax {
		h.records = h.records[len(h.records)-memoryHistoryMax:]
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]domain.DownloadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.records)
	if limit > n {
		limit = n
	}
	out := make([]domain.DownloadRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}
