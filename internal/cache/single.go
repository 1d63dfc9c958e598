package cache

import (
	"sync"
	"time"
)

// Single is a one-value cache whose value expires after a TTL.
type Single[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	value T
	at    time.Time
	set   bool
}

// NewSingle returns an empty Single. A nil now uses time.Now.
func NewSingle[T any](ttl time.Duration, now func() time.Time) *Single[T] {
	if now == nil {
		now = time.Now
	}
	return &Single[T]{ttl: ttl, now: now}
}

// Get returns the value if one is set and not older than the TTL.
func (s *Single[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.now().Sub(s.at) > s.ttl {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Set stores v as of now.
func (s *Single[T]) Set(v T) {
	s.mu.Lock()
	s.value, s.at, s.set = v, s.now(), true
	s.mu.Unlock()
}

// Reset drops the cached value.
func (s *Single[T]) Reset() {
	s.mu.Lock()
	var zero T
	s.value, s.set = zero, false
	s.mu.Unlock()
}
