package account

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// UserStore holds users and revoked session IDs.
type UserStore interface {
	Set(u *User) error
	Get(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	Revoke(sessionID string, until time.Time) error
	Revoked(sessionID string) bool
}

type Store struct {
	mu      sync.RWMutex
	users   map[string]*User
	emails  map[string]string
	revoked map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]*User),
		emails:  make(map[string]string),
		revoked: make(map[string]time.Time),
	}
}

func (s *Store) Set(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
	if u.Email != "" {
		s.emails[strings.ToLower(u.Email)] = u.ID
	}
	return nil
}

func (s *Store) Get(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := *u
	return &c, nil
}

func (s *Store) GetByEmail(email string) (*User, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return s.Get(id)
}

func (s *Store) Revoke(sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sessionID] = until
	return nil
}

func (s *Store) Revoked(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[sessionID]
	return ok
}
