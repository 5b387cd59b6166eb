package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-share/internal/models"
)

type memEntry struct {
	rides []*models.Ride
	ts    time.Time
}

// Memory is the in-process fallback when no Redis address is configured.
type Memory struct {
	mu    sync.RWMutex
	store map[string]memEntry
	ttl   time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{store: make(map[string]memEntry), ttl: ttl}
}

func (m *Memory) Get(_ context.Context, key string) ([]*models.Ride, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > m.ttl {
		m.mu.Lock()
		delete(m.store, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.rides, true
}

func (m *Memory) Set(_ context.Context, key string, rides []*models.Ride) {
	m.mu.Lock()
	m.store[key] = memEntry{rides: rides, ts: time.Now()}
	m.mu.Unlock()
}

func (m *Memory) Invalidate(_ context.Context) {
	m.mu.Lock()
	m.store = make(map[string]memEntry)
	m.mu.Unlock()
}
