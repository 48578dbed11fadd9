package webui

import (
	"context"
	"errors"
	"sync"
	"time"

	"aesthetisim/core"
)

// ErrSessionNotFound is returned when a session ID is not in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when a session exists but has expired.
var ErrSessionExpired = errors.New("session expired")

// SessionStore keeps authenticated dashboard sessions in memory. Safe for
// concurrent use. Sessions do not survive a restart; clinicians simply
// log in again.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]core.Session
	ttl      time.Duration
}

// NewSessionStore creates a store whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]core.Session),
		ttl:      ttl,
	}
}

// Create generates a session with a cryptographically secure ID and
// stores it.
func (s *SessionStore) Create() (core.Session, error) {
	id, err := core.GenerateSessionID()
	if err != nil {
		return core.Session{}, err
	}

	session := core.NewSessionWithDuration(id, s.ttl)

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns the session for an ID. Expired sessions are removed on
// lookup and reported as ErrSessionExpired.
func (s *SessionStore) Get(sessionID string) (core.Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[sessionID]
	s.mu.RUnlock()

	if !exists {
		return core.Session{}, ErrSessionNotFound
	}

	if session.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return core.Session{}, ErrSessionExpired
	}

	return session, nil
}

// Delete removes a session. Idempotent; used on logout.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Cleanup removes every expired session and returns how many it removed.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup on an interval until ctx is cancelled.
func (s *SessionStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
