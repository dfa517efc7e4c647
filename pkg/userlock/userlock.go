// Package userlock provides keyed mutexes used to serialize read-modify-write
// updates on per-user state. Operations on different keys proceed in
// parallel; operations on the same key serialize.
package userlock

import (
	"strconv"
	"sync"
)

// UserKey builds the canonical lock key for a user's profile state.
func UserKey(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

// KeyedMutex hands out one mutex per key, created on demand. Mutexes are
// never released; the key space (active users) is small relative to memory.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for key, creating it if needed.
func (k *KeyedMutex) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key. Panics if Lock was not called first,
// matching sync.Mutex semantics.
func (k *KeyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *KeyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
