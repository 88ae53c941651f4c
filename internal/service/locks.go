package service

import "sync"

// keyedLocks provides per-resource mutual exclusion for the ledger's
// check-then-write sequences. Locks are created on first use and never
// removed; the resource population is small and bounded.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for key and returns the unlock function.
func (k *keyedLocks) Acquire(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
