package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryItem struct {
	Value     string
	ExpiresAt time.Time
}

// MemoryStore is a single-process Store for tests and redis-less deployments.
// A single mutex serializes all key operations, which makes CompareAndSwap
// trivially atomic.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: map[string]memoryItem{},
		now:   time.Now,
	}
}

// SetClock replaces the store's time source. Test-only.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// itemLocked returns the live item for key, lazily dropping it if expired.
func (m *MemoryStore) itemLocked(key string) (memoryItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !it.ExpiresAt.IsZero() && !m.now().Before(it.ExpiresAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return it, true
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemLocked(key)
	if !ok {
		return "", false, nil
	}
	return it.Value, true, nil
}

func (m *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[key] = memoryItem{Value: value, ExpiresAt: exp}
	return nil
}

func (m *MemoryStore) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemLocked(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(it.Value, 10, 64)
		if err == nil {
			n = parsed
		}
	}
	n++
	m.items[key] = memoryItem{Value: strconv.FormatInt(n, 10), ExpiresAt: it.ExpiresAt}
	return n, nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemLocked(key)
	if !ok {
		return TTLMissing, nil
	}
	if it.ExpiresAt.IsZero() {
		return TTLNoExpiry, nil
	}
	return it.ExpiresAt.Sub(m.now()), nil
}

func (m *MemoryStore) SetExpiry(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemLocked(key)
	if !ok {
		return nil
	}
	it.ExpiresAt = m.now().Add(ttl)
	m.items[key] = it
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, key, prev, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemLocked(key)
	if !ok || it.Value != prev {
		return false, nil
	}
	it.Value = next
	m.items[key] = it
	return true, nil
}
