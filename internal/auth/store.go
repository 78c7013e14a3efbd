package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"library-catalog/internal/models"
)

// ErrSessionEnded is returned by a SessionStore for a session that was
// revoked, has expired or was never recorded.
var ErrSessionEnded = errors.New("session ended")

// SessionStore records issued sessions so they can be ended on logout.
// Lookup returns the session's user as currently stored.
type SessionStore interface {
	Create(ctx context.Context, sess Session, u *models.User) error
	Lookup(ctx context.Context, id string) (*models.User, error)
	Revoke(ctx context.Context, id string) error
}

type memorySession struct {
	user    models.User
	expires time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, sess Session, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = memorySession{user: *u, expires: sess.Expires}
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionEnded
	}
	if !m.now().Before(s.expires) {
		delete(m.sessions, id)
		return nil, ErrSessionEnded
	}
	u := s.user
	return &u, nil
}

func (m *MemoryStore) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
