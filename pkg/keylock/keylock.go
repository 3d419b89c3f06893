// Package keylock provides mutual exclusion keyed by an int64 identity.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them, so the map stays bounded by the
// number of keys in flight.
type Locker struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates an empty Locker
func New() *Locker {
	return &Locker{entries: make(map[int64]*entry)}
}

// Lock blocks until the key is held and returns its release function
func (l *Locker) Lock(key int64) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
