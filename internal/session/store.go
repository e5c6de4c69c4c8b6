package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store manages the session table.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetOrCreate returns the session for id, creating it when unknown.
	// An empty id gets a fresh one. The bool reports whether the session
	// was created. ErrStoreFull is returned when the table is at capacity.
	GetOrCreate(id, ownerID string) (*Session, bool, error)

	// Get returns the session for id.
	Get(id string) (*Session, bool)

	// Touch sets the session's LastActivity to the current time.
	Touch(id string)

	// Delete removes the session and reports whether it existed.
	Delete(id string) bool

	// IdleIDs returns the ids of sessions idle longer than maxIdle.
	IdleIDs(maxIdle time.Duration) []string

	// DeleteIdle removes the session only if it is still idle longer than
	// maxIdle, and reports whether it did.
	DeleteIdle(id string, maxIdle time.Duration) bool

	// Len returns the number of live sessions.
	Len() int

	// Range calls fn for each session until fn returns false.
	Range(fn func(*Session) bool)

	// ActiveIDs returns a snapshot of the live session ids.
	ActiveIDs() map[string]struct{}
}

// InMemoryStore is a concurrency-safe, in-memory Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// maxSessions limits the table size. Zero means unlimited.
	maxSessions int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewInMemoryStore creates an empty store holding at most maxSessions
// sessions; zero means unlimited.
func NewInMemoryStore(maxSessions int) *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// GetOrCreate implements Store.
func (s *InMemoryStore) GetOrCreate(id, ownerID string) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess, false, nil
		}
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return nil, false, ErrStoreFull
	}

	if id == "" {
		id = uuid.NewString()
	}
	if ownerID == "" {
		ownerID = AnonymousOwner
	}
	now := s.now()
	sess := &Session{
		ID:           id,
		OwnerID:      ownerID,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[id] = sess
	return sess, true, nil
}

// Get implements Store.
func (s *InMemoryStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Touch implements Store. It never moves LastActivity backwards.
func (s *InMemoryStore) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if now := s.now(); now.After(sess.LastActivity) {
			sess.LastActivity = now
		}
	}
}

// Delete implements Store.
func (s *InMemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// IdleIDs implements Store.
func (s *InMemoryStore) IdleIDs(maxIdle time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var ids []string
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > maxIdle {
			ids = append(ids, id)
		}
	}
	return ids
}

// DeleteIdle implements Store.
func (s *InMemoryStore) DeleteIdle(id string, maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.now().Sub(sess.LastActivity) <= maxIdle {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len implements Store.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range implements Store. The read lock is held for the whole iteration,
// so fn must not call back into the store.
func (s *InMemoryStore) Range(fn func(*Session) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if !fn(sess) {
			return
		}
	}
}

// ActiveIDs implements Store.
func (s *InMemoryStore) ActiveIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.sessions))
	for id := range s.sessions {
		ids[id] = struct{}{}
	}
	return ids
}

var _ Store = (*InMemoryStore)(nil)
