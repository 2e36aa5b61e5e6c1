package report

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Load for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// LRUStore is an in-memory LRU cache of run results. Results live for as
// long as they stay in the cache.
type LRUStore struct {
	mu  sync.Mutex
	cap int

	// Doubly-linked list for LRU ordering (most recent at head).
	head, tail *lruEntry
	items      map[string]*lruEntry
}

type lruEntry struct {
	key    string
	result *RunResult
	prev   *lruEntry
	next   *lruEntry
}

// NewLRUStore creates an LRU cache with the given capacity. Capacity must
// be >= 1.
func NewLRUStore(cap int) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		items: make(map[string]*lruEntry, cap),
	}
}

// Save inserts the result, evicting the least recently used one when full.
func (s *LRUStore) Save(result *RunResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("saving run: missing run ID")
	}
	s.mu.Lock()
	s.put(result.ID, result)
	s.mu.Unlock()
	return nil
}

// Load returns a cached result and marks it most recently used.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	s.moveToFront(e)
	return e.result, nil
}

// Len returns the number of cached results.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// put must be called with s.mu held.
func (s *LRUStore) put(key string, result *RunResult) {
	if e, ok := s.items[key]; ok {
		e.result = result
		s.moveToFront(e)
		return
	}
	e := &lruEntry{key: key, result: result}
	s.items[key] = e
	s.pushFront(e)
	if len(s.items) > s.cap {
		s.evict()
	}
}

func (s *LRUStore) pushFront(e *lruEntry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) moveToFront(e *lruEntry) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}

func (s *LRUStore) remove(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (s *LRUStore) evict() {
	if s.tail == nil {
		return
	}
	e := s.tail
	s.remove(e)
	delete(s.items, e.key)
}
