package cache

import (
	"sync"
	"time"
)

// Memory implements the Cache interface with an in-process map.
// Expired entries are evicted lazily when read; there is no background
// sweeper. The zero TTL on Read disables expiry checking.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewMemory creates a new in-memory cache
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates an in-memory cache with a custom time source
// so expiry behaviour can be tested deterministically
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
		now:     now,
	}
}

// Read implements Reader interface
func (m *Memory) Read(key string, maxAge time.Duration) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}

	if maxAge > 0 && m.now().Sub(entry.FetchedAt) >= maxAge {
		delete(m.entries, key)
		return nil, false
	}

	return entry, true
}

// Write implements Writer interface
func (m *Memory) Write(key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = m.now()
	}
	m.entries[key] = entry
	return nil
}

// KeyFor implements KeyGenerator interface
func (m *Memory) KeyFor(path string, params map[string]string) string {
	return KeyFor(path, params)
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear drops all entries
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
}
