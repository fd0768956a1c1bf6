// Package keyedmutex provides mutual exclusion scoped to a string key.
// Callers serialise read-decide-write sequences per entity (venue, badge)
// without a single global lock.
package keyedmutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Mutex hands out per-key locks. Entries are reference counted and removed
// once the last holder unlocks, so the map does not grow with key churn.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Mutex {
	return &Mutex{entries: make(map[string]*entry)}
}

// Lock acquires the lock for key and returns the matching unlock function.
// The unlock function must be called exactly once.
func (m *Mutex) Lock(key string) (unlock func()) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}
}
