package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DelxAbde/panel-pal-translate/internal/db"
)

const SystemNamespace = "panelpal/"

// PersistentStore keeps users in badger as JSON under users/<id>, with an
// emails/<address> index and revoked/<session> markers.
type PersistentStore struct {
	dbStore *db.Store
}

func NewPersistentStore(dbStore *db.Store) *PersistentStore {
	return &PersistentStore{dbStore: dbStore}
}

func (s *PersistentStore) Set(u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	entries := map[string][]byte{"users/" + u.ID: data}
	if u.Email != "" {
		entries["emails/"+strings.ToLower(u.Email)] = []byte(u.ID)
	}
	if err := s.dbStore.SetAll(SystemNamespace, entries); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func (s *PersistentStore) Get(id string) (*User, error) {
	data, err := s.dbStore.Get(SystemNamespace, "users/"+id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *PersistentStore) GetByEmail(email string) (*User, error) {
	id, err := s.dbStore.Get(SystemNamespace, "emails/"+strings.ToLower(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return s.Get(string(id))
}

// Revoke marks a session revoked until its token expires. The marker expires
// with it; a token past its expiry is rejected without one.
func (s *PersistentStore) Revoke(sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	data, err := until.UTC().MarshalText()
	if err != nil {
		return err
	}
	if err := s.dbStore.SetWithTTL(SystemNamespace, "revoked/"+sessionID, data, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *PersistentStore) Revoked(sessionID string) bool {
	_, err := s.dbStore.Get(SystemNamespace, "revoked/"+sessionID)
	return err == nil
}
