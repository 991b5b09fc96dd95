package userstore

import (
	"context"
	"sync"
	"time"

	bootpractice "github.com/Kascald/bootPractice-2"
)

var (
	_ bootpractice.UserProvider    = (*MemoryStore)(nil)
	_ bootpractice.PasswordUpdater = (*MemoryStore)(nil)
)

// MemoryStore keeps users in a map keyed by username.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]bootpractice.UserRecord
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]bootpractice.UserRecord),
		now:   time.Now,
	}
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (bootpractice.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return bootpractice.UserRecord{}, bootpractice.ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u bootpractice.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return bootpractice.ErrUserExists
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Username] = u
	return nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return bootpractice.ErrUserNotFound
	}
	u.PasswordHash = hash
	s.users[username] = u
	return nil
}

// Delete removes a user. Outstanding refresh tokens for the user are
// rejected on their next reissue.
func (s *MemoryStore) Delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}

// SetRole changes a user's role; it takes effect at the next reissue.
func (s *MemoryStore) SetRole(username, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return bootpractice.ErrUserNotFound
	}
	u.Role = role
	s.users[username] = u
	return nil
}
