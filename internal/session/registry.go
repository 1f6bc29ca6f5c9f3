package session

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps ports to live sessions. It is owned by the orchestration
// facade and passed by handle to the allocator and the supervisor, so
// tests can inject a fresh registry instead of sharing ambient global
// state.
//
// Invariants:
//   - an entry is added only after a successful spawn (never speculatively);
//   - at most one session per port;
//   - exit/error handling removes the entry before any observer runs.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*Session)}
}

// Add registers a session under its port. Returns an error if a session
// is already registered there — starting a second project on an
// occupied port requires explicitly stopping the prior session first.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[s.Port()]; ok {
		return fmt.Errorf("port %d already has a registered session (pid %d)", s.Port(), existing.Pid())
	}
	r.sessions[s.Port()] = s
	return nil
}

// Get returns the session registered for the port, if any.
func (r *Registry) Get(port int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[port]
	return s, ok
}

// Owns reports whether this engine spawned the server on the given port.
// Used by the allocator to classify an occupied port.
func (r *Registry) Owns(port int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[port]
	return ok
}

// Remove deletes the entry for the port and returns the removed session,
// or nil if none was registered. Removing an unknown port is a no-op,
// which makes stop idempotent.
func (r *Registry) Remove(port int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[port]
	if !ok {
		return nil
	}
	delete(r.sessions, port)
	return s
}

// Ports returns the registered ports in ascending order.
func (r *Registry) Ports() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ports := make([]int, 0, len(r.sessions))
	for p := range r.sessions {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Sessions returns a snapshot of all registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
