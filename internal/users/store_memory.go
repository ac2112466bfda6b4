package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkout-zone-backend/internal/platform/apperr"
)

// MemoryStore はテストと dev/demo 起動用のインメモリ実装
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]User)}
}

func (s *MemoryStore) Insert(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.items {
		if v.Username == u.Username {
			return apperr.Conflict("username already exists")
		}
		if v.Email == u.Email {
			return apperr.Conflict("email already exists")
		}
	}
	s.items[u.UserID] = *u
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := v
	return &cp, nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if v.Username == username {
			cp := v
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if v.Email == email {
			cp := v
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *MemoryStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, u *User, prevUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[u.UserID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if !cur.UpdatedAt.Equal(prevUpdatedAt) {
		return apperr.Conflict("user was updated concurrently")
	}
	for id, v := range s.items {
		if id == u.UserID {
			continue
		}
		if v.Email == u.Email {
			return apperr.Conflict("email already exists")
		}
	}
	s.items[u.UserID] = *u
	return nil
}
