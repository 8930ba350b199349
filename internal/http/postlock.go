package http

import "sync"

// postLocks serializes read-modify-write vote transitions per post so two
// concurrent votes on the same post cannot lose updates. Cross-process
// races remain last-write-wins.
//
// Entries are refcounted and removed on the last unlock, so the map stays
// proportional to in-flight votes rather than every post ever voted on.
type postLocks struct {
	mu    sync.Mutex
	locks map[uint]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func newPostLocks() *postLocks {
	return &postLocks{locks: make(map[uint]*postLock)}
}

func (p *postLocks) lock(postID uint) {
	p.mu.Lock()
	l, ok := p.locks[postID]
	if !ok {
		l = &postLock{}
		p.locks[postID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
}

func (p *postLocks) unlock(postID uint) {
	p.mu.Lock()
	l := p.locks[postID]
	l.refs--
	if l.refs == 0 {
		delete(p.locks, postID)
	}
	p.mu.Unlock()

	l.mu.Unlock()
}
