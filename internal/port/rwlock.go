package port

import "sync"

// RWLock admits many concurrent readers or one writer.
//
// NewExclusiveRWLock builds the fallback used where no shared lock exists:
// read and write acquisitions both take the same exclusive lock, so readers
// serialize with each other as well as with writers. Callers that need to
// know which behavior they got can check Shared.
type RWLock struct {
	rw        sync.RWMutex
	exclusive bool
}

func NewRWLock() *RWLock {
	return &RWLock{}
}

func NewExclusiveRWLock() *RWLock {
	return &RWLock{exclusive: true}
}

// Shared reports whether concurrent readers are admitted.
func (l *RWLock) Shared() bool {
	return !l.exclusive
}

func (l *RWLock) ReadLock() {
	if l.exclusive {
		l.rw.Lock()
		return
	}
	l.rw.RLock()
}

func (l *RWLock) ReadUnlock() {
	if l.exclusive {
		l.rw.Unlock()
		return
	}
	l.rw.RUnlock()
}

func (l *RWLock) WriteLock() {
	l.rw.Lock()
}

func (l *RWLock) WriteUnlock() {
	l.rw.Unlock()
}
