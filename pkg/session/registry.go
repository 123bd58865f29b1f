package session

import (
	"errors"
	"sync"
)

// ErrDuplicateCall is returned when a call identifier is already live.
var ErrDuplicateCall = errors.New("session: call already registered")

// Registry maps live call identifiers to their sessions. Entries are
// removed when the session reaches a terminal state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. A second registration for a live callID is
// rejected so webhook redelivery cannot double-admit a call.
func (r *Registry) Add(callID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.sessions[callID]; live {
		return ErrDuplicateCall
	}
	r.sessions[callID] = s
	return nil
}

// Remove drops the entry for callID if present.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Get returns the live session for callID.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
