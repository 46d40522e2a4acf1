package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryConfig holds configuration for the in-memory cache.
type MemoryConfig struct {
	// MaxSize is the maximum number of entries before LRU eviction (default 1000).
	MaxSize int

	// TTL is the fixed time-to-live per entry (default 5 minutes).
	TTL time.Duration
}

// DefaultMemoryConfig returns the default in-memory cache configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxSize: 1000,
		TTL:     5 * time.Minute,
	}
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// Memory implements Store with capacity-bounded LRU eviction combined with a
// fixed per-entry TTL; whichever limit is hit first wins. Expired entries are
// removed lazily on access, so len(entries) <= MaxSize after every mutation.
type Memory struct {
	mu      sync.Mutex
	cfg     MemoryConfig
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	now func() time.Time
}

// NewMemory creates a new in-memory cache store.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMemoryConfig().MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMemoryConfig().TTL
	}
	return &Memory{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get retrieves a value and marks it as most recently used.
// An expired entry behaves as a miss and is removed.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	entry := el.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.remove(el)
		return "", false, nil
	}
	m.order.MoveToFront(el)
	return entry.value, true, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = m.now().Add(m.cfg.TTL)
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: m.now().Add(m.cfg.TTL),
	})
	m.entries[key] = el

	if m.order.Len() > m.cfg.MaxSize {
		if back := m.order.Back(); back != nil {
			m.remove(back)
		}
	}
	return nil
}

// Has reports whether a live entry exists. Unlike Get it does not touch
// recency, but it does remove an entry found expired.
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if m.now().After(el.Value.(*memoryEntry).expiresAt) {
		m.remove(el)
		return false, nil
	}
	return true, nil
}

// Delete removes an entry.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.remove(el)
	}
	return nil
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

// Len returns the number of live entries, sweeping out any that expired.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			m.remove(el)
		}
		el = prev
	}
	return m.order.Len(), nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

// remove must be called with the lock held.
func (m *Memory) remove(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.order.Remove(el)
}
