package annotation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAnnotation is returned when the store cannot be read or written.
var ErrAnnotation = errors.New("annotation failed")

// Store is the persisted annotation storage keyed by URL.
type Store interface {
	// Get returns the stored annotation value for url.
	// ok is false when the URL has no annotation.
	Get(ctx context.Context, url string) (value string, ok bool, err error)

	// Set replaces the annotation value for url. An empty value removes it.
	Set(ctx context.Context, url, value string) error

	// EnsureHistoryEntry creates a history entry for url with a single
	// visit at the given time unless one exists already.
	EnsureHistoryEntry(ctx context.Context, url string, visit time.Time) error
}

// MemoryStore is an in-process Store used for dry runs and tests.
// Like the persistent store, it refuses to annotate URLs without history.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	history map[string][]time.Time
}

// ErrNoHistoryEntry is returned by MemoryStore.Set for unknown URLs.
var ErrNoHistoryEntry = errors.New("no history entry for url")

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]string),
		history: make(map[string][]time.Time),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, url string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[url]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, url, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values, url)
		return nil
	}
	if _, ok := s.history[url]; !ok {
		return ErrNoHistoryEntry
	}
	s.values[url] = value
	return nil
}

// EnsureHistoryEntry implements Store.
func (s *MemoryStore) EnsureHistoryEntry(_ context.Context, url string, visit time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[url]; !ok {
		s.history[url] = []time.Time{visit}
	}
	return nil
}

// Visits returns the recorded visits for url.
func (s *MemoryStore) Visits(url string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.history[url]...)
}
