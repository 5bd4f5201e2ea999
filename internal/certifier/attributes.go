package certifier

import (
	"time"

	"fccertifier/internal/certifier/models"
)

// BuildAttributes assembles the certified-attribute list for a normalized
// identity. Normalized values go under the plain keys, the broker's raw
// values under the fc_* keys. Attributes with an empty value are omitted
// rather than pushed as blank certifications, so an unparsable birth date or
// a failed geocode lookup simply drops the corresponding keys.
func BuildAttributes(identity models.NormalizedIdentity, certifierCode string, now time.Time) []models.CertifiedAttribute {
	values := identity.AttributeValues()
	attributes := make([]models.CertifiedAttribute, 0, len(values))
	for _, kv := range values {
		if kv.Value == "" {
			continue
		}
		attributes = append(attributes, models.CertifiedAttribute{
			Key:           kv.Key,
			Value:         kv.Value,
			CertifierCode: certifierCode,
			CertifiedAt:   now,
		})
	}
	return attributes
}
