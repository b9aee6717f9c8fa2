package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/chatcontext/session"
)

// InMemoryStore implements session.Store using an in-memory map with
// optimistic locking. Sessions are copied on the way in and out, so callers
// never share history slices with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.SessionData
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*session.SessionData),
	}
}

// Create implements session.Store.
func (s *InMemoryStore) Create(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[data.ID]; exists {
		return session.ErrAlreadyExists
	}

	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	s.sessions[data.ID] = data.Clone()
	return nil
}

// Get implements session.Store.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	return data.Clone(), nil
}

// Update implements session.Store.
func (s *InMemoryStore) Update(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[data.ID]
	if !exists {
		return session.ErrNotFound
	}
	if stored.Version != data.Version {
		return session.ErrVersionConflict
	}

	data.Version++
	data.UpdatedAt = time.Now()

	s.sessions[data.ID] = data.Clone()
	return nil
}

// Delete implements session.Store.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Close implements session.Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*session.SessionData)
	return nil
}

var _ session.Store = (*InMemoryStore)(nil)
