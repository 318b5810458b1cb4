package tle

import (
	"sync"
	"time"
)

// Store keeps the most recently parsed dataset per source in memory.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{datasets: make(map[string]*Dataset)}
}

// Get returns the dataset for source if it is younger than maxAge.
// A non-positive maxAge accepts any age.
func (s *Store) Get(source string, maxAge time.Duration) (*Dataset, bool) {
	s.mu.RLock()
	ds, ok := s.datasets[source]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if maxAge > 0 && time.Since(ds.FetchedAt) > maxAge {
		return nil, false
	}
	return ds, true
}

// Set replaces the dataset for ds.Source.
func (s *Store) Set(ds *Dataset) {
	s.mu.Lock()
	s.datasets[ds.Source] = ds
	s.mu.Unlock()
}
