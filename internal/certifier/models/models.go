package models

import (
	"time"

	"fccertifier/internal/franceconnect"
)

// Attribute keys this certifier owns in the identity store. The fc_* keys
// carry the broker's raw values, the others carry normalized values.
const (
	KeyBirthDate         = "birthdate"
	KeyRawBirthDate      = "fc_birthdate"
	KeyBirthPlace        = "birthplace"
	KeyRawBirthPlace     = "fc_birthplace"
	KeyBirthCountry      = "birthcountry"
	KeyRawBirthCountry   = "fc_birthcountry"
	KeyGender            = "gender"
	KeyRawGender         = "fc_gender"
	KeyFirstName         = "first_name"
	KeyRawGivenName      = "fc_given_name"
	KeyFamilyName        = "family_name"
	KeyRawFamilyName     = "fc_family_name"
	KeyPreferredUsername = "preferred_username"
)

// OwnedKeys lists every attribute key this certifier may certify, in the
// order attributes are built.
var OwnedKeys = []string{
	KeyBirthDate, KeyRawBirthDate,
	KeyBirthPlace, KeyRawBirthPlace,
	KeyBirthCountry, KeyRawBirthCountry,
	KeyGender, KeyRawGender,
	KeyFirstName, KeyRawGivenName,
	KeyFamilyName, KeyRawFamilyName,
	KeyPreferredUsername,
}

// NormalizedIdentity is a read-only view over a broker profile plus the
// fields computed for the identity store. It is created once per validation
// attempt and re-derived rather than patched.
type NormalizedIdentity struct {
	Profile franceconnect.UserProfile

	// BirthDate in the identity store's dd/MM/yyyy format; empty when the
	// broker date failed to parse.
	BirthDate string

	// Display names resolved through the geocode collaborator; empty means
	// "do not certify", never an error.
	BirthPlaceName   string
	BirthCountryName string

	// Numeric gender convention of the identity store.
	GenderCode string
}

// KeyValue pairs an owned attribute key with its certifiable value.
type KeyValue struct {
	Key   string
	Value string
}

// AttributeValues lists every owned attribute key together with the value
// this identity would certify for it, in OwnedKeys order. Values may be
// empty; emitting decisions belong to the caller.
func (n NormalizedIdentity) AttributeValues() []KeyValue {
	return []KeyValue{
		{KeyBirthDate, n.BirthDate},
		{KeyRawBirthDate, n.Profile.BirthDate},
		{KeyBirthPlace, n.BirthPlaceName},
		{KeyRawBirthPlace, n.Profile.BirthPlace},
		{KeyBirthCountry, n.BirthCountryName},
		{KeyRawBirthCountry, n.Profile.BirthCountry},
		{KeyGender, n.GenderCode},
		{KeyRawGender, n.Profile.Gender},
		{KeyFirstName, n.Profile.GivenName},
		{KeyRawGivenName, n.Profile.GivenName},
		{KeyFamilyName, n.Profile.FamilyName},
		{KeyRawFamilyName, n.Profile.FamilyName},
		{KeyPreferredUsername, n.Profile.PreferredUsername},
	}
}

// CertifiableKeys lists the owned keys that carry a non-empty value.
func (n NormalizedIdentity) CertifiableKeys() []string {
	var keys []string
	for _, kv := range n.AttributeValues() {
		if kv.Value != "" {
			keys = append(keys, kv.Key)
		}
	}
	return keys
}

// ValidationTicket tracks one in-progress certification attempt for one
// session. Single-use: consuming it removes it from the store.
type ValidationTicket struct {
	SessionKey      string
	ConnectionID    string
	Email           string
	ExpiresAt       time.Time
	InvalidAttempts int

	// Identity is nil until the broker profile has been fetched and
	// normalized.
	Identity *NormalizedIdentity
}

// Expired reports whether the ticket is past its expiry at the given time.
func (t ValidationTicket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// CertifiedAttribute is one attribute pushed to the identity store together
// with its certification. Never emitted with an empty value.
type CertifiedAttribute struct {
	Key           string
	Value         string
	CertifierCode string
	CertifiedAt   time.Time
}
