package memory

import (
	"sync"

	"github.com/Unmesh-12634/HackMate-sub001/internal/domain/models"
)

// SessionTracker is the reverse lookup conn id -> joined team context.
// One slot per connection: Record overwrites.
type SessionTracker interface {
	Record(session models.Session)
	Lookup(connID string) (models.Session, bool)
	Forget(connID string)
	Count() int
}

type sessionTracker struct {
	sessions map[string]models.Session
	mu       sync.RWMutex
}

func NewSessionTracker() SessionTracker {
	return &sessionTracker{
		sessions: make(map[string]models.Session),
	}
}

func (s *sessionTracker) Record(session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ConnID] = session
}

func (s *sessionTracker) Lookup(connID string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[connID]
	return session, ok
}

func (s *sessionTracker) Forget(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, connID)
}

func (s *sessionTracker) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
