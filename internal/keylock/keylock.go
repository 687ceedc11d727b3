package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Map hands out one exclusive slot per key. Waiters queue in arrival order
// and give up when their context ends. Idle keys are removed.
type Map struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns an empty Map.
func New() *Map {
	return &Map{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done. On success the returned
// function releases the key and must be called exactly once.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		m.drop(key, s)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			m.drop(key, s)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *Map) drop(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
