package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// Memory keeps constants in process. Entries with a TTL expire lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   domain.GlobalConstants
	expires time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Name() string { return BackendMemory }

func (m *Memory) Get(_ context.Context, key string) (domain.GlobalConstants, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return domain.GlobalConstants{}, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		return domain.GlobalConstants{}, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value domain.GlobalConstants, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Close() error { return nil }
