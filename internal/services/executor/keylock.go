package executor

import (
	"sync"
)

type lockKey struct {
	chatID int64
	userID int64
}

// keyedMutex serializes state transitions per (chat, user) so concurrent
// messages from the same user cannot race a read-modify-write.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[lockKey]*lockEntry)}
}

func (k *keyedMutex) Lock(chatID, userID int64) func() {
	key := lockKey{chatID: chatID, userID: userID}

	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
