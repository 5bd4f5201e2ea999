// Package identitystore defines the contract with the identity-store
// collaborator. The store's REST API has gone through several DTO revisions;
// this package exposes one stable contract and keeps version differences an
// external concern.
package identitystore

import "time"

// Certificate records who vouched for an attribute value and when.
type Certificate struct {
	CertifierCode   string    `json:"certifier_code"`
	CertificateDate time.Time `json:"certificate_date"`
}

// Attribute is a single identity attribute, optionally certified.
type Attribute struct {
	Key         string       `json:"key"`
	Value       string       `json:"value"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

// Identity is the identity-store record for one subject.
type Identity struct {
	CustomerID   string               `json:"customer_id"`
	ConnectionID string               `json:"connection_id"`
	Attributes   map[string]Attribute `json:"attributes"`
}

// IdentityChange is the update request pushed to the store.
type IdentityChange struct {
	Identity Identity `json:"identity"`
	Author   Author   `json:"author"`
}

// Author identifies the application performing a change.
type Author struct {
	ApplicationCode string `json:"application_code"`
}

// DuplicateSearchRequest asks the duplicate-search collaborator for identities
// resembling the given attributes under the named rule codes.
type DuplicateSearchRequest struct {
	RuleCodes  []string          `json:"rule_codes"`
	Attributes map[string]string `json:"attributes"`
}
