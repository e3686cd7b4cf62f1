package records

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the hash operations of db.Store.
type memStore struct {
	mu        sync.Mutex
	hashes    map[string]map[string]string
	hgetCalls int
	// cachedTTLs records the ttl of every cached read
	cachedTTLs []time.Duration
	pageSize  int
	failScan  error
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]map[string]string{}, pageSize: 2}
}

func (m *memStore) ReplaceHash(_ context.Context, key string, fields map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.hashes[key]
	m.hashes[key] = copyHash(fields)
	return existed, nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hgetCalls++
	return copyHash(m.hashes[key]), nil
}

func (m *memStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hgetCalls++
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = copyHash(m.hashes[k])
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	return nil
}

// The cached reads see every write at once, as Redis invalidation guarantees across clients.
func (m *memStore) HGetAllCached(ctx context.Context, key string, ttl time.Duration) (map[string]string, error) {
	m.noteCached(ttl)
	return m.HGetAll(ctx, key)
}

func (m *memStore) HGetAllMultiCached(ctx context.Context, keys []string, ttl time.Duration) ([]map[string]string, error) {
	m.noteCached(ttl)
	return m.HGetAllMulti(ctx, keys)
}

func (m *memStore) noteCached(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachedTTLs = append(m.cachedTTLs, ttl)
}

// ScanPage pages through matching keys in sorted order; the cursor is an offset.
func (m *memStore) ScanPage(_ context.Context, cursor uint64, pattern string, _ int64) ([]string, uint64, error) {
	if m.failScan != nil {
		return nil, 0, m.failScan
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := int(cursor)
	if start >= len(keys) {
		return nil, 0, nil
	}
	end := min(start+m.pageSize, len(keys))
	next := uint64(end)
	if end == len(keys) {
		next = 0
	}
	return keys[start:end], next, nil
}

func copyHash(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
