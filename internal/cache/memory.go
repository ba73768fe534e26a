package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	key      string
	deadline time.Time
}

// Memory is an in-process Store with a capacity bound. It is the default
// when no Redis address is configured.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	deadline map[string]time.Time
	order    []memEntry
	capacity int
}

// NewMemory creates a memory store holding at most capacity entries;
// the oldest entry is evicted first when the bound is exceeded.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	return &Memory{
		values:   make(map[string][]byte, capacity),
		deadline: make(map[string]time.Time, capacity),
		order:    make([]memEntry, 0, capacity),
		capacity: capacity,
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	dl, ok := m.deadline[key]
	if !ok || now.After(dl) {
		return nil, false, nil
	}
	return m.values[key], true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	dl := now.Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	m.deadline[key] = dl
	m.order = append(m.order, memEntry{key: key, deadline: dl})
	m.compact(now)
	return nil
}

// compact drops expired entries and, while over capacity, the oldest ones.
func (m *Memory) compact(now time.Time) {
	for len(m.order) > 0 && (len(m.values) > m.capacity || m.order[0].deadline.Before(now)) {
		oldest := m.order[0]
		m.order = m.order[1:]

		// Only delete if the entry was not overwritten with a newer deadline.
		if dl, ok := m.deadline[oldest.key]; ok && dl.Equal(oldest.deadline) {
			delete(m.values, oldest.key)
			delete(m.deadline, oldest.key)
		}
	}
}
