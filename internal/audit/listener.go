package audit

import (
	"context"

	"fccertifier/internal/certifier/models"
	"fccertifier/pkg/requestcontext"
)

// Listener records certification outcomes on the audit trail. It is
// registered on the certifier service's observer set.
type Listener struct {
	publisher *Publisher
}

func NewListener(publisher *Publisher) *Listener {
	return &Listener{publisher: publisher}
}

func (l *Listener) OnCertified(ctx context.Context, ticket models.ValidationTicket) error {
	var keys []string
	if ticket.Identity != nil {
		keys = ticket.Identity.CertifiableKeys()
	}
	return l.publisher.Emit(ctx, Event{
		Kind:          EventCertified,
		ConnectionID:  ticket.ConnectionID,
		SessionKey:    ticket.SessionKey,
		AttributeKeys: keys,
		Timestamp:     requestcontext.Now(ctx),
	})
}

func (l *Listener) OnDecertified(ctx context.Context, connectionID string) error {
	return l.publisher.Emit(ctx, Event{
		Kind:         EventDecertified,
		ConnectionID: connectionID,
		Timestamp:    requestcontext.Now(ctx),
	})
}
