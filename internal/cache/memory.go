package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process PageCache for single-instance deployments
// without Redis.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryCache) Close() error {
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *MemoryCache) MarkViewed(ctx context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = viewPrefix + key
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.data[key] = memoryEntry{value: []byte("1"), expires: m.now().Add(window)}
	return true, nil
}

func (m *MemoryCache) InvalidateArticle(ctx context.Context, slug, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range pageKeys(slug, category) {
		delete(m.data, key)
	}
	for key := range m.data {
		if ok, _ := path.Match(feedPattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

// lookup returns a live entry and evicts an expired one. Callers hold mu.
func (m *MemoryCache) lookup(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return memoryEntry{}, false
	}
	return e, true
}
