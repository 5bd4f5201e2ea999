package store

import (
	"context"
	"time"

	"fccertifier/internal/certifier/models"
)

// TicketStore holds at most one validation ticket per session key.
//
// Error contract:
// - Consume returns sentinel.ErrNotFound when no ticket exists for the key
//   (never started, or already consumed).
// - Consume returns sentinel.ErrExpired when a ticket existed but was past
//   its expiry; the ticket is removed either way.
// - nil for successful operations.
type TicketStore interface {
	Put(ctx context.Context, ticket models.ValidationTicket) error
	Consume(ctx context.Context, sessionKey string, now time.Time) (models.ValidationTicket, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
