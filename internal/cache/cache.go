// Package cache holds previously observed file metadata so the streaming path
// can skip redundant filesystem stats.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"musicstream/internal/metrics"
)

const (
	DefaultTTL        = 7200 * time.Second
	DefaultMaxEntries = 500
)

// Entry is the cached view of one file. Size and ModTime are only meaningful
// while Exists is true.
type Entry struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	Exists  bool      `json:"exists"`
}

type cachedEntry struct {
	entry      Entry
	insertedAt time.Time
	expiresAt  time.Time
}

// Backend is an optional shared tier consulted before the in-memory map.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Metadata is a bounded, expiring path→Entry store. Entries expire a fixed
// TTL after insertion regardless of access; inserting beyond capacity evicts
// the oldest insertions first. Safe for concurrent use.
type Metadata struct {
	ttl        time.Duration
	maxEntries int
	backend    Backend
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cachedEntry
}

type Option func(*Metadata)

// WithBackend layers a shared backend (e.g. Redis) in front of the memory map.
func WithBackend(b Backend) Option {
	return func(m *Metadata) { m.backend = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Metadata) { m.now = now }
}

func New(ttl time.Duration, maxEntries int, opts ...Option) *Metadata {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	m := &Metadata{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]cachedEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the entry for path if present and not expired.
func (m *Metadata) Get(path string) (Entry, bool) {
	now := m.now()

	if m.backend != nil {
		entry, found, err := m.backend.Get(context.Background(), path)
		if err == nil && found {
			// The backend expires the entry on its own; refilling the local
			// tier here would restart the TTL on every read.
			metrics.CacheHitsTotal.Inc()
			return entry, true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.entries[path]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return Entry{}, false
	}
	if now.After(cached.expiresAt) {
		delete(m.entries, path)
		metrics.CacheMissesTotal.Inc()
		return Entry{}, false
	}
	metrics.CacheHitsTotal.Inc()
	return cached.entry, true
}

// Set stores the entry for path, evicting oldest insertions beyond capacity.
func (m *Metadata) Set(path string, entry Entry) {
	now := m.now()

	if m.backend != nil {
		_ = m.backend.Set(context.Background(), path, entry, m.ttl)
	}

	m.storeMemory(path, entry, now)
}

// Invalidate removes path from every tier. It returns once the entry is gone,
// so callers can order it with the filesystem unlink it accompanies.
func (m *Metadata) Invalidate(path string) {
	if m.backend != nil {
		_ = m.backend.Delete(context.Background(), path)
	}

	m.mu.Lock()
	delete(m.entries, path)
	m.mu.Unlock()
}

// Len reports the current in-memory entry count.
func (m *Metadata) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Metadata) storeMemory(path string, entry Entry, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[path] = cachedEntry{
		entry:      entry,
		insertedAt: now,
		expiresAt:  now.Add(m.ttl),
	}
	m.trimLocked(now)
}

func (m *Metadata) trimLocked(now time.Time) {
	for path, cached := range m.entries {
		if now.After(cached.expiresAt) {
			delete(m.entries, path)
		}
	}

	if len(m.entries) <= m.maxEntries {
		return
	}

	type pair struct {
		path   string
		cached cachedEntry
	}
	items := make([]pair, 0, len(m.entries))
	for path, cached := range m.entries {
		items = append(items, pair{path: path, cached: cached})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].cached.insertedAt.Before(items[j].cached.insertedAt)
	})
	for i := 0; i < len(items)-m.maxEntries; i++ {
		delete(m.entries, items[i].path)
	}
}
