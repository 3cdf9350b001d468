package users

import "sync"

// userLocks is a keyed mutex map: one mutex per user id, created on first
// use. It provides the row-level serialization the storage core requires:
// quota check and quota commit for a given user must be atomic with respect
// to other mutations for that same user, while different users proceed fully
// in parallel.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *userLocks) get(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	if mutex, exists := l.locks[userID]; exists {
		return mutex
	}
	mutex := &sync.Mutex{}
	l.locks[userID] = mutex
	return mutex
}

// Lock acquires the user's mutation lock. Callers bracket every
// quota-check-then-write sequence (save, chunk, merge, delete) with
// Lock/Unlock for that user.
func (s *Store) Lock(userID int64) {
	s.locks.get(userID).Lock()
}

// Unlock releases the user's mutation lock.
func (s *Store) Unlock(userID int64) {
	s.locks.get(userID).Unlock()
}
