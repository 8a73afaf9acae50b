package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	html         string
	expiresAt    time.Time
	lastAccessAt time.Time
}

// Memory is a TTL cache with least-recently-used eviction at capacity.
// Eviction scans all entries, which is O(n) per insert at capacity and
// acceptable for the small cache sizes this service runs with.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

// NewMemory creates a memory cache with the given TTL and capacity.
func NewMemory(ttl time.Duration, maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = 100
	}
	return &Memory{
		entries:  make(map[string]entry, maxItems),
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Get returns the cached HTML and refreshes the entry's recency.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	now := m.now()
	if !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	e.lastAccessAt = now
	m.entries[key] = e
	return e.html, true, nil
}

// Set stores html under key. At capacity the single least-recently
// accessed entry is evicted to admit the new one.
func (m *Memory) Set(_ context.Context, key, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.removeExpiredLocked(now)
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxItems {
		m.evictOldestLocked()
	}
	m.entries[key] = entry{
		html:         html,
		expiresAt:    now.Add(m.ttl),
		lastAccessAt: now,
	}
	return nil
}

// Len reports the current number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close satisfies Store; the memory backend holds no resources.
func (m *Memory) Close() error { return nil }

func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for key, e := range m.entries {
		if oldestKey == "" || e.lastAccessAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccessAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) removeExpiredLocked(now time.Time) {
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
