package cache

import "sync"

// Memory is a concurrency-safe cache holding at most twice its limit.
//
// Entries live in two generations. Set writes to the current one; when it
// reaches the limit it becomes the previous generation and the old previous
// generation is dropped. Get promotes hits from the previous generation, so
// entries in use survive rotation.
type Memory[V any] struct {
	mu      sync.Mutex
	limit   int
	current map[string]V
	prev    map[string]V
	hits    uint64
	misses  uint64
}

// NewMemory creates a cache rotating every limit entries. A limit below 1
// is raised to 1.
func NewMemory[V any](limit int) *Memory[V] {
	if limit < 1 {
		limit = 1
	}
	return &Memory[V]{limit: limit, current: make(map[string]V)}
}

// Get retrieves a value from the cache.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.current[key]; ok {
		m.hits++
		return v, true
	}
	if v, ok := m.prev[key]; ok {
		m.hits++
		m.store(key, v)
		return v, true
	}
	m.misses++
	var zero V
	return zero, false
}

// Set stores a value in the cache.
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, value)
}

func (m *Memory[V]) store(key string, value V) {
	if _, ok := m.current[key]; !ok && len(m.current) >= m.limit {
		m.prev = m.current
		m.current = make(map[string]V, m.limit)
	}
	m.current[key] = value
}

// Len returns the number of distinct keys held.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.current)
	for key := range m.prev {
		if _, ok := m.current[key]; !ok {
			n++
		}
	}
	return n
}

// Stats returns the hit and miss counts since creation.
func (m *Memory[V]) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
