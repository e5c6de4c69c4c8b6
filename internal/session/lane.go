package session

import "sync"

// LaneLock serializes work per session id while letting different
// sessions proceed in parallel. A global mutex guards the lane map and is
// held only to look up or create a lane.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is one session's mutex. refs counts holders and waiters; stale
// marks lanes to drop once refs reaches zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[string]*lane)}
}

// Acquire locks the lane for id, creating it if needed.
// The caller must call Release with the same id.
func (l *LaneLock) Acquire(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{}
		l.lanes[id] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	ln.mu.Lock()
}

// Release unlocks the lane for id.
func (l *LaneLock) Release(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 && ln.stale {
		delete(l.lanes, id)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Cleanup drops lanes whose id is not in activeIDs. Lanes still held are
// marked stale and dropped on their last Release.
func (l *LaneLock) Cleanup(activeIDs map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, active := activeIDs[id]; active {
			ln.stale = false
			continue
		}
		ln.stale = true
		if ln.refs == 0 {
			delete(l.lanes, id)
		}
	}
}

// Len returns the number of tracked lanes.
func (l *LaneLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
