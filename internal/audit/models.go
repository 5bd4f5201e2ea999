package audit

import "time"

// EventKind classifies audit trail entries.
type EventKind string

const (
	EventCertified   EventKind = "certified"
	EventDecertified EventKind = "decertified"
)

// Event is one append-only audit trail entry. Attribute values are never
// recorded, only the keys that were touched.
type Event struct {
	ID            string
	Kind          EventKind
	ConnectionID  string
	SessionKey    string
	AttributeKeys []string
	Timestamp     time.Time
}
