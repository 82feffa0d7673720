package service

import (
	"sync"

	id "trustline/pkg/domain"
)

// sessionLocks serialises read-modify-write cycles per session.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[id.SessionID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[id.SessionID]*sessionLock)}
}

// lock blocks until the session is free and returns its unlock.
func (l *sessionLocks) lock(sessionID id.SessionID) func() {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
