package cache

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryCacheSize bounds the in-process cache; least recently used keys go first.
const DefaultMemoryCacheSize = 10_000

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with the same JSON round trip as the Redis one.
// Entries carry their own TTL, the LRU only bounds the size.
type MemoryCache struct {
	entries *expirable.LRU[string, memoryEntry]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: expirable.NewLRU[string, memoryEntry](DefaultMemoryCacheSize, nil, 0)}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.entries.Remove(key)
		return false, nil
	}
	return true, json.Unmarshal(e.raw, dest)
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := memoryEntry{raw: raw}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries.Add(key, e)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.entries.Remove(k)
	}
	return nil
}

// DeletePattern uses path.Match globbing, which covers the same patterns Redis SCAN MATCH is used with here.
func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	for _, k := range m.entries.Keys() {
		if ok, _ := path.Match(pattern, k); ok {
			m.entries.Remove(k)
		}
	}
	return nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

// Len is the number of stored keys, expired ones included.
func (m *MemoryCache) Len() int {
	return m.entries.Len()
}
