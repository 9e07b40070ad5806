// Package memstore is an in-memory storage gateway for dry runs and tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	fail    map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{objects: make(map[string][]byte), fail: make(map[string]error)}
}

// Get returns a copy of the object at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrObjectNotFound)
	}
	return slices.Clone(data), nil
}

// Put stores a copy of data at key.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[key]; ok {
		return err
	}
	s.objects[key] = slices.Clone(data)
	return nil
}

// ListKeys returns the sorted keys starting with prefix.
func (s *Store) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

// FailPuts makes every later Put of key return err.
func (s *Store) FailPuts(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[key] = err
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// CheckReadiness always succeeds.
func (s *Store) CheckReadiness(context.Context) error { return nil }
