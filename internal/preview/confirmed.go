// ABOUTME: Bounded set of confirmed preview ids shared across workflows
// ABOUTME: Oldest entries are evicted at capacity to cap growth per session

package preview

import (
	"container/list"
	"sync"
)

// DefaultCapacity bounds the confirmed-id set. A long session confirms at
// most this many previews before the oldest ids age out of dedupe memory.
const DefaultCapacity = 256

// ConfirmedSet remembers which preview ids this process has already
// confirmed, so a duplicate approve short-circuits without a network call.
// It outlives individual workflow instances but not the process; inject one
// shared instance rather than relying on a package global.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type ConfirmedSet struct {
	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List // ids in insertion order (oldest at front)
	capacity int
}

// NewConfirmedSet creates a set holding at most capacity ids. A
// non-positive capacity falls back to DefaultCapacity.
func NewConfirmedSet(capacity int) *ConfirmedSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ConfirmedSet{
		seen:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// Contains reports whether id has been confirmed.
func (s *ConfirmedSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Add records id as confirmed, evicting the oldest entry at capacity. It
// returns true if the id was newly added, false if it was already present
// (re-adding refreshes its position).
func (s *ConfirmedSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.seen[id]; ok {
		s.order.MoveToBack(elem)
		return false
	}

	if len(s.seen) >= s.capacity {
		front := s.order.Front()
		if front != nil {
			oldest, _ := front.Value.(string)
			s.order.Remove(front)
			delete(s.seen, oldest)
		}
	}

	s.seen[id] = s.order.PushBack(id)
	return true
}

// Len returns the number of ids currently held.
func (s *ConfirmedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
