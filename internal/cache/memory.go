package cache

import (
	"context"
	"sync"
	"time"

	"github.com/staywatch/room-deals/backend/internal/models"
)

type memoryEntry struct {
	key string
	ts  time.Time
}

type memoryItem struct {
	set models.ResultSet
	ts  time.Time
}

// Memory is an in-process Store bounded by capacity and TTL. Entries past
// either bound are evicted oldest-first on every write.
type Memory struct {
	mu       sync.Mutex
	items    map[string]memoryItem
	order    []memoryEntry
	capacity int
	ttl      time.Duration
}

// NewMemory creates a memory store with the provided capacity and ttl.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		items:    make(map[string]memoryItem, capacity),
		order:    make([]memoryEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the last stored result set for key, or absent when the key was
// never written or its entry has expired.
func (m *Memory) Get(_ context.Context, key string) (models.ResultSet, bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok || now.Sub(item.ts) > m.ttl {
		return nil, false, nil
	}
	return item.set, true, nil
}

// Put overwrites the result set for key. Last writer wins.
func (m *Memory) Put(_ context.Context, key string, set models.ResultSet) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryItem{set: set, ts: now}
	m.order = append(m.order, memoryEntry{key: key, ts: now})
	m.compact(now)
	return nil
}

// Ping always succeeds; the store lives in-process.
func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) compact(now time.Time) {
	cutoff := now.Add(-m.ttl)

	for len(m.order) > 0 && (len(m.items) > m.capacity || m.order[0].ts.Before(cutoff)) {
		oldest := m.order[0]
		m.order = m.order[1:]

		if item, ok := m.items[oldest.key]; ok {
			if item.ts.Equal(oldest.ts) {
				delete(m.items, oldest.key)
			}
		}
	}
}
