package session

import (
	"sort"
	"sync"
	"time"
)

// Registry is the in-memory source of truth for live sessions. Every
// mutation of one id happens under the registry lock, so status and field
// updates for the same session never interleave.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a fresh INITIALIZING session bound to client.
func (r *Registry) Create(id string, client Client) error {
	return r.create(id, client, false)
}

func (r *Registry) create(id string, client Client, resumed bool) error {
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return ErrExists
	}

	now := r.now()
	r.sessions[id] = &Session{
		ID:           id,
		Status:       StatusInitializing,
		LastActiveAt: now,
		CreatedAt:    now,
		client:       client,
		resumed:      resumed,
	}
	return nil
}

func (r *Registry) Get(id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// Client returns the live handle bound to id along with the session status.
func (r *Registry) Client(id string) (Client, Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.closing {
		return nil, "", ErrNotFound
	}
	return s.client, s.Status, nil
}

// Delete drops the entry without touching its client. Teardown goes through Cleaner.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// List returns snapshots of every session ordered by id.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastActiveAt = r.now()
	return nil
}

func (r *Registry) StatusOf(id string) (StatusInfo, error) {
	s, err := r.Get(id)
	if err != nil {
		return StatusInfo{}, err
	}
	return s.Info(), nil
}

// CountByStatus groups live sessions by status.
func (r *Registry) CountByStatus() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, s := range r.sessions {
		counts[s.Status]++
	}
	return counts
}

// update applies fn to the entry for id, provided it is still bound to
// client and not being torn down. Events from a replaced or closing handle
// are rejected this way.
func (r *Registry) update(id string, client Client, fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.client != client || s.closing {
		return ErrNotFound
	}
	fn(s)
	return nil
}

// claim marks the entry as closing and hands back its snapshot. Only the
// first caller wins, which keeps concurrent teardowns of one id single.
func (r *Registry) claim(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.closing {
		return Session{}, false
	}
	s.closing = true
	return *s, true
}

func (r *Registry) deleteIf(id string, client Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.client != client {
		return false
	}
	delete(r.sessions, id)
	return true
}
