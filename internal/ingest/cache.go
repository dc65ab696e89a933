package ingest

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/referral-cli/internal/table"
)

// memo is a TTL cache of loaded tables. Concurrent misses for the same key
// share one load.
type memo struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	gen     uint64
	hits    atomic.Int64
	misses  atomic.Int64
}

type memoEntry struct {
	t        *table.Table
	loadedAt time.Time
}

// CacheStats contains memo statistics.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func newMemo(ttl time.Duration, now func() time.Time) *memo {
	return &memo{
		entries: make(map[string]*memoEntry),
		ttl:     ttl,
		now:     now,
	}
}

// get returns the cached table for key or runs load. The returned table is
// shared and must not be modified.
func (m *memo) get(key string, load func() (*table.Table, error)) (*table.Table, error) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		if m.now().Sub(e.loadedAt) <= m.ttl {
			m.mu.Unlock()
			m.hits.Add(1)
			return e.t, nil
		}
		delete(m.entries, key)
	}
	gen := m.gen
	m.mu.Unlock()
	m.misses.Add(1)

	v, err, _ := m.group.Do(strconv.FormatUint(gen, 10)+"|"+key, func() (any, error) {
		t, err := load()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		// A refresh during the load invalidates its result.
		if m.gen == gen {
			m.entries[key] = &memoEntry{t: t, loadedAt: m.now()}
		}
		m.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

// invalidate drops every entry.
func (m *memo) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoEntry)
	m.gen++
}

func (m *memo) stats() CacheStats {
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	return CacheStats{Entries: n, Hits: m.hits.Load(), Misses: m.misses.Load()}
}
