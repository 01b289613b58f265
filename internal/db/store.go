package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// maxConflictRetries bounds how often Update re-runs after a badger write conflict.
const maxConflictRetries = 8

type Store struct {
	db *badger.DB
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(namespace, key string) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		v, err := readValue(txn, namespace+key)
		value = v
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return value, err
}

func (s *Store) Set(namespace, key string, value []byte) error {
	return s.SetAll(namespace, map[string][]byte{key: value})
}

// SetAll writes every entry in a single transaction.
func (s *Store) SetAll(namespace string, entries map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range entries {
			if err := txn.Set([]byte(namespace+k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetWithTTL writes a value that badger drops once ttl has passed.
func (s *Store) SetWithTTL(namespace, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(namespace+key), value).WithTTL(ttl))
	})
}

func (s *Store) Delete(namespace, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(namespace + key))
	})
}

// Update applies fn to the current value of key and stores the result, all in
// one transaction. fn receives nil when the key is missing. An error from fn
// aborts the write and is returned unchanged. Write conflicts with concurrent
// updates are retried.
func (s *Store) Update(namespace, key string, fn func(old []byte) ([]byte, error)) error {
	fullKey := namespace + key

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			old, err := readValue(txn, fullKey)
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			next, err := fn(old)
			if err != nil {
				return err
			}
			return txn.Set([]byte(fullKey), next)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("update %s: %w", key, err)
}

func (s *Store) List(namespace, prefix string, limit int) ([]string, error) {
	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		fullPrefix := []byte(namespace + prefix)
		count := 0
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix) && (limit <= 0 || count < limit); it.Next() {
			key := string(it.Item().Key())
			keys = append(keys, key[len(namespace):])
			count++
		}

		return nil
	})

	return keys, err
}

func readValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
