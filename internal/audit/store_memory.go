package audit

import (
	"context"
	"sync"
)

// Store persists audit events. Append-only so the trail stays trustworthy.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByConnectionID(ctx context.Context, connectionID string) ([]Event, error)
}

// InMemoryStore keeps the audit trail in memory, in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore constructs an empty audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByConnectionID(_ context.Context, connectionID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, event := range s.events {
		if event.ConnectionID == connectionID {
			out = append(out, event)
		}
	}
	return out, nil
}
