package service

import (
	"fmt"
	"sync"
)

// lockMap hands out one mutex per key.  Entries are reference counted
// and dropped once nobody holds or waits for them, so the map only grows
// with the number of keys in use at the same time.
type lockMap struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockMap() *lockMap {
	return &lockMap{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is free and returns the matching unlock
// function.  The unlock function must be called exactly once.
func (l *lockMap) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
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

func (l *lockMap) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func rowKey(id int64) string   { return fmt.Sprintf("row:%d", id) }
func tableKey(id int64) string { return fmt.Sprintf("table:%d", id) }
