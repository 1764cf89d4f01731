package registry

import (
	"sort"
	"sync"

	"github.com/yashkhare05/Uptime/internal/domain"
)

// Registry is the in-memory directory of connected validators.
// A public key is bound to at most one live connection at a time.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*domain.Session // conn ID -> session
	byKey  map[string]string          // public key -> conn ID
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		byConn: make(map[string]*domain.Session),
		byKey:  make(map[string]string),
	}
}

// Add registers a session for its connection. If the public key was bound to
// a different connection, that older session is evicted and returned.
func (r *Registry) Add(s domain.Session) (evicted *domain.Session) {
	connID := s.Conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Same connection re-enrolling under another key drops its old binding.
	if prev, ok := r.byConn[connID]; ok && prev.PublicKey != s.PublicKey {
		if r.byKey[prev.PublicKey] == connID {
			delete(r.byKey, prev.PublicKey)
		}
	}

	if oldConn, ok := r.byKey[s.PublicKey]; ok && oldConn != connID {
		evicted = r.byConn[oldConn]
		delete(r.byConn, oldConn)
	}

	session := s
	r.byConn[connID] = &session
	r.byKey[s.PublicKey] = connID
	return evicted
}

// Remove drops the session bound to connID. Unknown connections are a no-op.
func (r *Registry) Remove(connID string) (removed *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)
	if r.byKey[s.PublicKey] == connID {
		delete(r.byKey, s.PublicKey)
	}
	return s
}

// Get returns the session bound to connID.
func (r *Registry) Get(connID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byConn[connID]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

// List returns a snapshot of all sessions, ordered by join time.
// Sessions removed before the call are never included.
func (r *Registry) List() []domain.Session {
	r.mu.RLock()
	sessions := make([]domain.Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		sessions = append(sessions, *s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].JoinedAt.Before(sessions[j].JoinedAt)
	})
	return sessions
}

// Count returns the number of connected validators
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byConn)
}
