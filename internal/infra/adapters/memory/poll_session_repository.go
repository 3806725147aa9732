package memory

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionClosed = errors.New("poll session closed")
	ErrQueueFull     = errors.New("poll queue full")
)

// PollSession is a connection handle for clients on the long-polling fallback.
// Outbound frames queue up until the client's next poll.
type PollSession struct {
	id       string
	capacity int

	mu       sync.Mutex
	queue    [][]byte
	closed   bool
	polling  int
	lastSeen time.Time
	notify   chan struct{}
}

func NewPollSession(id string, capacity int, now time.Time) *PollSession {
	return &PollSession{
		id:       id,
		capacity: capacity,
		lastSeen: now,
		notify:   make(chan struct{}, 1),
	}
}

func (s *PollSession) ID() string {
	return s.id
}

func (s *PollSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if len(s.queue) >= s.capacity {
		// a client this far behind is treated like a dead socket
		s.closed = true
		s.wake()
		return ErrQueueFull
	}

	s.queue = append(s.queue, frame)
	s.wake()

	return nil
}

func (s *PollSession) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *PollSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.wake()
}

func (s *PollSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Poll waits up to wait for queued frames and hands them all over.
func (s *PollSession) Poll(ctx context.Context, wait time.Duration, now func() time.Time) ([][]byte, error) {
	s.begin(now())
	defer func() { s.end(now()) }()

	if frames, err := s.take(); err != nil || len(frames) > 0 {
		return frames, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	case <-s.notify:
	}

	return s.take()
}

func (s *PollSession) take() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	frames := s.queue
	s.queue = nil

	return frames, nil
}

func (s *PollSession) begin(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polling++
	s.lastSeen = now
}

func (s *PollSession) end(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polling--
	s.lastSeen = now
}

// Touch marks client activity other than polling, e.g. an inbound frame.
func (s *PollSession) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
}

// IdleSince is zero while a poll is in flight.
func (s *PollSession) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.polling > 0 {
		return 0
	}

	return now.Sub(s.lastSeen)
}

// PollSessionRepository keeps the open long-polling sessions by sid
type PollSessionRepository interface {
	Add(session *PollSession)
	Get(sid string) (*PollSession, bool)
	// Remove reports whether the session was still registered.
	Remove(sid string) bool

	// Stale returns sessions that are closed or have not polled for idle.
	Stale(now time.Time, idle time.Duration) []*PollSession
}

type pollSessionRepository struct {
	sessions map[string]*PollSession
	mu       sync.RWMutex
}

func NewPollSessionRepository() PollSessionRepository {
	return &pollSessionRepository{
		sessions: make(map[string]*PollSession),
	}
}

func (r *pollSessionRepository) Add(session *PollSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID()] = session
}

func (r *pollSessionRepository) Get(sid string) (*PollSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sid]
	return session, ok
}

func (r *pollSessionRepository) Remove(sid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sid]; !ok {
		return false
	}

	delete(r.sessions, sid)

	return true
}

func (r *pollSessionRepository) Stale(now time.Time, idle time.Duration) []*PollSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*PollSession

	for _, session := range r.sessions {
		if session.Closed() || session.IdleSince(now) >= idle {
			stale = append(stale, session)
		}
	}

	return stale
}
