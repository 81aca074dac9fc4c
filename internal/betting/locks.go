package betting

import "sync"

// marketLocks provides per-market mutual exclusion. All pool mutations and
// the settlement of a given market serialize on its lock; operations on
// different markets proceed in parallel. Single-instance only — for
// horizontal scaling, replace with distributed locking or database-level
// row locks.
type marketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMarketLocks() *marketLocks {
	return &marketLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for the given market ID, creating it on first
// use, and returns the unlock function. Locks are never removed: the set of
// markets is small and bounded by market creation rate.
func (l *marketLocks) lock(marketID string) func() {
	l.mu.Lock()
	m, ok := l.locks[marketID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[marketID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
