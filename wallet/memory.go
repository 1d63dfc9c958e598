package wallet

import (
	"context"
	"strings"
	"sync"
)

// MemorySource is an in-process AccountSource for hosts that keep their
// account list in memory, and for tests.
type MemorySource struct {
	mu       sync.RWMutex
	accounts []Account
	selected string
	group    []string
}

// NewMemorySource returns a source holding accounts, all in the active group,
// with the first one selected.
func NewMemorySource(accounts ...Account) *MemorySource {
	s := &MemorySource{}
	s.SetAccounts(accounts...)
	return s
}

// SetAccounts replaces the account list and resets selection and group.
func (s *MemorySource) SetAccounts(accounts ...Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]Account(nil), accounts...)
	s.group = s.group[:0]
	for _, a := range accounts {
		s.group = append(s.group, strings.ToLower(a.Address))
	}
	s.selected = ""
	if len(accounts) > 0 {
		s.selected = strings.ToLower(accounts[0].Address)
	}
}

// Select marks addr as the selected account.
func (s *MemorySource) Select(addr string) {
	s.mu.Lock()
	s.selected = strings.ToLower(addr)
	s.mu.Unlock()
}

// SetActiveGroup restricts the active group to addrs.
func (s *MemorySource) SetActiveGroup(addrs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = s.group[:0]
	for _, a := range addrs {
		s.group = append(s.group, strings.ToLower(a))
	}
}

func (s *MemorySource) ListAccounts(context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Account(nil), s.accounts...), nil
}

func (s *MemorySource) SelectedAccount(context.Context) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return Account{}, false, nil
	}
	a, ok := FindByAddress(s.accounts, s.selected)
	return a, ok, nil
}

func (s *MemorySource) ActiveGroupAccounts(context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.group))
	for _, addr := range s.group {
		if a, ok := FindByAddress(s.accounts, addr); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Bus is a minimal synchronous Subscriber implementation.
type Bus struct {
	mu       sync.Mutex
	next     uint64
	handlers map[Event]map[uint64]func()
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Event]map[uint64]func())}
}

// Subscribe registers handler for event and returns its unsubscribe function.
func (b *Bus) Subscribe(event Event, handler func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[uint64]func())
	}
	b.handlers[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[event], id)
			b.mu.Unlock()
		})
	}
}

// Publish invokes every handler registered for event.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := make([]func(), 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Subscribers returns how many handlers are registered for event.
func (b *Bus) Subscribers(event Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}
