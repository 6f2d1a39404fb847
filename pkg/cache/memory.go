package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is an in-process Cache used in tests and when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) get(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) GetJSON(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	e, ok := m.get(key)
	m.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(e.value, dest)
}

func (m *Memory) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: payload, expiresAt: m.expiry(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	e, ok := m.get(key)
	if ok {
		_ = json.Unmarshal(e.value, &n)
	} else {
		e.expiresAt = m.expiry(window)
	}
	n++
	e.value, _ = json.Marshal(n)
	m.entries[key] = e
	return n, nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.get(key); ok {
		return false, nil
	}
	payload, _ := json.Marshal(value)
	m.entries[key] = memoryEntry{value: payload, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(key)
	return ok, nil
}
