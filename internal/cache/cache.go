// Package cache provides a small key/value cache with TTLs used for search
// results and idempotency reservations. Redis backs it in production and an
// in-process map backs it in development and tests.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is the subset of cache operations the services rely on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) getLocked(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.getLocked(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: m.expiry(ttl)}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.getLocked(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: m.expiry(ttl)}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Incr treats a missing key as zero. Expiry of an existing key is kept.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, _ := m.getLocked(key)
	var n int64
	if len(entry.value) > 0 {
		if err := parseInt(entry.value, &n); err != nil {
			return 0, err
		}
	}
	n++
	entry.value = formatInt(n)
	m.entries[key] = entry
	return n, nil
}

func (m *Memory) Close() error { return nil }
