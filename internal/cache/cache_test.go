package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestMetadata_GetSet(t *testing.T) {
	clock := newManualClock()
	m := New(time.Hour, 10, WithClock(clock.Now))

	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := Entry{Size: 1234, ModTime: clock.Now(), Exists: true}
	m.Set("/music/a.mp3", want)

	got, ok := m.Get("/music/a.mp3")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMetadata_EntriesExpireAfterTTL(t *testing.T) {
	clock := newManualClock()
	m := New(time.Hour, 10, WithClock(clock.Now))

	m.Set("/music/a.mp3", Entry{Size: 1, Exists: true})

	clock.Advance(59 * time.Minute)
	if _, ok := m.Get("/music/a.mp3"); !ok {
		t.Fatal("entry expired before TTL elapsed")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("entry survived past TTL")
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len = %d", m.Len())
	}
}

func TestMetadata_TTLRunsFromInsertionNotAccess(t *testing.T) {
	clock := newManualClock()
	m := New(time.Hour, 10, WithClock(clock.Now))

	m.Set("/music/a.mp3", Entry{Size: 1, Exists: true})

	// Repeated reads must not extend the lifetime.
	for i := 0; i < 3; i++ {
		clock.Advance(19 * time.Minute)
		if _, ok := m.Get("/music/a.mp3"); !ok {
			t.Fatalf("unexpected miss at %s", clock.Now())
		}
	}

	clock.Advance(10 * time.Minute)
	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("reads extended the entry lifetime")
	}
}

func TestMetadata_EvictsOldestBeyondCapacity(t *testing.T) {
	clock := newManualClock()
	m := New(time.Hour, 3, WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		m.Set(fmt.Sprintf("/music/%d.mp3", i), Entry{Size: int64(i), Exists: true})
		clock.Advance(time.Second)
	}

	if m.Len() != 3 {
		t.Fatalf("len = %d, want 3", m.Len())
	}
	if _, ok := m.Get("/music/0.mp3"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := m.Get(fmt.Sprintf("/music/%d.mp3", i)); !ok {
			t.Fatalf("entry %d unexpectedly evicted", i)
		}
	}
}

func TestMetadata_Invalidate(t *testing.T) {
	m := New(time.Hour, 10)
	m.Set("/music/a.mp3", Entry{Size: 1, Exists: true})
	m.Set("/music/b.mp3", Entry{Size: 2, Exists: true})

	m.Invalidate("/music/a.mp3")

	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("invalidated entry still present")
	}
	if _, ok := m.Get("/music/b.mp3"); !ok {
		t.Fatal("unrelated entry lost")
	}
}

// ---- backend tier ----

type fakeBackend struct {
	entries map[string]Entry
	setN    int
	delN    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[string]Entry)}
}

func (b *fakeBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := b.entries[key]
	return e, ok, nil
}

func (b *fakeBackend) Set(_ context.Context, key string, entry Entry, _ time.Duration) error {
	b.entries[key] = entry
	b.setN++
	return nil
}

func (b *fakeBackend) Delete(_ context.Context, key string) error {
	delete(b.entries, key)
	b.delN++
	return nil
}

func TestMetadata_BackendWriteThrough(t *testing.T) {
	backend := newFakeBackend()
	m := New(time.Hour, 10, WithBackend(backend))

	m.Set("/music/a.mp3", Entry{Size: 7, Exists: true})
	if backend.setN != 1 {
		t.Fatalf("backend writes = %d, want 1", backend.setN)
	}

	m.Invalidate("/music/a.mp3")
	if backend.delN != 1 {
		t.Fatalf("backend deletes = %d, want 1", backend.delN)
	}
	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestMetadata_BackendServesColdLocalCache(t *testing.T) {
	backend := newFakeBackend()
	backend.entries["/music/a.mp3"] = Entry{Size: 9, Exists: true}

	m := New(time.Hour, 10, WithBackend(backend))

	got, ok := m.Get("/music/a.mp3")
	if !ok {
		t.Fatal("expected hit from backend")
	}
	if got.Size != 9 {
		t.Fatalf("size = %d, want 9", got.Size)
	}
	if m.Len() != 0 {
		t.Fatal("backend hit must not refill the local tier")
	}
}

func TestMetadata_RepeatedReadsDoNotExtendTTL(t *testing.T) {
	clock := newManualClock()
	backend := newFakeBackend()
	m := New(2*time.Hour, 10, WithBackend(backend), WithClock(clock.Now))

	m.Set("/music/a.mp3", Entry{Size: 9, Exists: true})

	// A mid-lifetime read served by the backend must not restart the clock.
	clock.Advance(30 * time.Minute)
	if _, ok := m.Get("/music/a.mp3"); !ok {
		t.Fatal("expected hit before expiry")
	}

	// The backend drops the entry at its own TTL.
	delete(backend.entries, "/music/a.mp3")

	clock.Advance(2 * time.Hour)
	if _, ok := m.Get("/music/a.mp3"); ok {
		t.Fatal("entry survived past its insertion TTL")
	}
}
