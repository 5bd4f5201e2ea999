package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fccertifier/internal/certifier/models"
	"fccertifier/pkg/platform/sentinel"
)

// InMemoryTicketStore keeps validation tickets in a mutex-guarded map. The
// map is owned by the service instance that constructed it; there is no
// process-wide singleton and no cross-node replication.
type InMemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]models.ValidationTicket
}

// New constructs an empty in-memory ticket store.
func New() *InMemoryTicketStore {
	return &InMemoryTicketStore{
		tickets: make(map[string]models.ValidationTicket),
	}
}

// Put creates or replaces the ticket for its session key. Starting a new
// validation overwrites any prior ticket for that session.
func (s *InMemoryTicketStore) Put(_ context.Context, ticket models.ValidationTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.SessionKey] = ticket
	return nil
}

// Consume atomically looks up and removes the ticket for the session key.
// Removal is unconditional once found: tickets are single-use by
// construction, not retried after a failed certification.
func (s *InMemoryTicketStore) Consume(_ context.Context, sessionKey string, now time.Time) (models.ValidationTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[sessionKey]
	if !ok {
		return models.ValidationTicket{}, fmt.Errorf("ticket for session %q: %w", sessionKey, sentinel.ErrNotFound)
	}
	delete(s.tickets, sessionKey)
	if ticket.Expired(now) {
		return models.ValidationTicket{}, fmt.Errorf("ticket for session %q: %w", sessionKey, sentinel.ErrExpired)
	}
	return ticket, nil
}

// DeleteExpired removes every ticket past its expiry as of the given time.
// The time parameter is injected for testability.
func (s *InMemoryTicketStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, ticket := range s.tickets {
		if ticket.Expired(now) {
			delete(s.tickets, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of live tickets. Used by the sweeper's gauge.
func (s *InMemoryTicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}
