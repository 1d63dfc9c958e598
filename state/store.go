package state

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCorruptState is returned when a persisted snapshot cannot be decoded.
	ErrCorruptState = errors.New("rewards state corrupt")
	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("rewards state store unavailable")
	// ErrStoreConflict is returned when optimistic updates keep colliding.
	ErrStoreConflict = errors.New("rewards state update conflict")
)

// Transform derives the next state from the current one. It receives a
// private deep copy and must not perform I/O.
type Transform func(State) State

// Store persists State and serializes transitions.
type Store interface {
	Load(ctx context.Context) (State, error)
	Apply(ctx context.Context, fn Transform) (State, error)
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns a store holding a copy of initial.
func NewMemoryStore(initial State) *MemoryStore {
	return &MemoryStore{state: initial.Clone()}
}

// Load returns a copy of the current state.
func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

// Apply replaces the state with fn's result and returns a copy of it.
func (m *MemoryStore) Apply(ctx context.Context, fn Transform) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := fn(m.state.Clone()).Clone()
	m.state = next
	return next.Clone(), nil
}
