// Package cache provides an injected TTL memoization abstraction for
// expensive, input-deterministic work. Entries are immutable once written and
// simply expire, so concurrent access needs no coordination beyond the map
// lock.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Cache is the capability handed to collaborators: get, and set with TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// Key builds a composite cache key from input parameters, hashed so large
// payloads stay out of the key space.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p) //nolint:errcheck
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithNow fixes the clock for testing.
func (m *Memory) WithNow(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get returns the cached value when present and unexpired.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL. Expired entries for other keys are
// swept opportunistically to bound growth.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
}

// Noop discards everything; used in tests and when caching is disabled.
type Noop struct{}

// Get always misses.
func (Noop) Get(string) ([]byte, bool) { return nil, false }

// Set discards the value.
func (Noop) Set(string, []byte, time.Duration) {}
