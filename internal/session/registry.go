package session

import (
	"errors"
	"fmt"
	"sort"
)

// Registry maps connection ids to sessions. Like Session it belongs to a
// single goroutine.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create builds a session for id and registers it.
func (r *Registry) Create(id string, host Host, composer Composer, opts Options) (*Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("create %q: %w", id, ErrExists)
	}
	s := New(id, host, composer, opts)
	r.sessions[id] = s
	return s, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy destroys and unregisters the session for id. The session is
// unregistered even when releasing its upstream fails.
func (r *Registry) Destroy(id string) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("destroy %q: %w", id, ErrNotFound)
	}
	delete(r.sessions, id)
	if err := s.Destroy(); err != nil {
		return fmt.Errorf("destroy %q: %w", id, err)
	}
	return nil
}

// CloseAll destroys every session.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, id := range r.IDs() {
		if err := r.Destroy(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
