package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key([]byte("pdf bytes"), []byte("proposta.pdf"))
	b := Key([]byte("pdf bytes"), []byte("proposta.pdf"))
	c := Key([]byte("pdf bytes"), []byte("outra.pdf"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory()
	m.Set("k", []byte("v"), time.Minute)

	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithNow(func() time.Time { return clock })

	m.Set("k", []byte("v"), 30*time.Minute)

	clock = clock.Add(29 * time.Minute)
	_, ok := m.Get("k")
	assert.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok = m.Get("k")
	assert.False(t, ok, "entries past their TTL never surface")
}

func TestMemory_SetSweepsExpired(t *testing.T) {
	clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithNow(func() time.Time { return clock })

	m.Set("old", []byte("v"), time.Minute)
	clock = clock.Add(2 * time.Minute)
	m.Set("new", []byte("v"), time.Minute)

	m.mu.RLock()
	_, present := m.entries["old"]
	m.mu.RUnlock()
	assert.False(t, present, "expired entries are swept on write")
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	c.Set("k", []byte("v"), time.Hour)

	_, ok := c.Get("k")
	assert.False(t, ok)
}
