package services

import "sync"

type roomLock struct {
	mu      sync.Mutex
	holders int
}

// roomLocks serializes operations per room code. Entries are created on
// first use and dropped once nobody holds or waits on them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// Lock blocks until the caller owns code and returns the release func.
func (l *roomLocks) Lock(code string) func() {
	l.mu.Lock()
	lock, ok := l.locks[code]
	if !ok {
		lock = &roomLock{}
		l.locks[code] = lock
	}
	lock.holders++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
