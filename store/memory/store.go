// Package memory implements the rule store in process memory. It backs the
// adapter's tests and serves as a volatile stand-in for MongoDB.
package memory

import (
	"context"
	"sync"

	"github.com/polstore/mongoadapter/rule"
	"github.com/polstore/mongoadapter/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store holds rule records in insertion order behind a mutex.
type Store struct {
	mu    sync.RWMutex
	rules []rule.Rule
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) FindAll(_ context.Context) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rule.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func (s *Store) Find(_ context.Context, filters []rule.Filter) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rule.Rule
	for _, r := range s.rules {
		for _, f := range filters {
			if f.Matches(r) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) InsertOne(_ context.Context, r rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	return nil
}

func (s *Store) InsertMany(_ context.Context, rules []rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rules...)
	return nil
}

func (s *Store) DeleteOne(_ context.Context, f rule.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFirst(f)
	return nil
}

func (s *Store) BulkDeleteOne(_ context.Context, filters []rule.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range filters {
		s.deleteFirst(f)
	}
	return nil
}

// deleteFirst removes the first record matching f. Caller holds the lock.
func (s *Store) deleteFirst(f rule.Filter) {
	for i, r := range s.rules {
		if f.Matches(r) {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return
		}
	}
}

func (s *Store) ReplaceOne(_ context.Context, f rule.Filter, r rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceFirst(f, r)
	return nil
}

func (s *Store) BulkReplaceOne(_ context.Context, reps []store.Replacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rep := range reps {
		s.replaceFirst(rep.Filter, rep.Rule)
	}
	return nil
}

// replaceFirst replaces the first record matching f. Caller holds the lock.
func (s *Store) replaceFirst(f rule.Filter, r rule.Rule) {
	for i, existing := range s.rules {
		if f.Matches(existing) {
			s.rules[i] = r
			return
		}
	}
}

func (s *Store) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
