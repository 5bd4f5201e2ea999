package identitystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fccertifier/pkg/platform/sentinel"
)

// Client is the narrow contract the certifier consumes. The client code and
// change author are fixed at construction, not passed per call.
type Client interface {
	GetByConnectionID(ctx context.Context, connectionID string) (*Identity, error)
	Update(ctx context.Context, customerID string, change IdentityChange) error
	SearchDuplicates(ctx context.Context, req DuplicateSearchRequest) ([]Identity, error)
}

// MockClient keeps identities in memory with a configurable latency so
// wiring and tests behave like a remote collaborator. Safe for concurrent
// use.
type MockClient struct {
	Latency    time.Duration
	FailUpdate bool
	FailSearch bool

	mu         sync.RWMutex
	identities map[string]*Identity
}

// NewMockClient builds an empty mock identity store.
func NewMockClient() *MockClient {
	return &MockClient{identities: make(map[string]*Identity)}
}

// Seed inserts or replaces an identity keyed by connection id.
func (c *MockClient) Seed(identity Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if identity.Attributes == nil {
		identity.Attributes = make(map[string]Attribute)
	}
	c.identities[identity.ConnectionID] = &identity
}

func (c *MockClient) GetByConnectionID(ctx context.Context, connectionID string) (*Identity, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	identity, ok := c.identities[connectionID]
	if !ok {
		return nil, fmt.Errorf("identity for connection %q: %w", connectionID, sentinel.ErrNotFound)
	}
	copied := cloneIdentity(identity)
	return &copied, nil
}

func (c *MockClient) Update(ctx context.Context, customerID string, change IdentityChange) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if c.FailUpdate {
		return fmt.Errorf("update identity %q: status 503: %w", customerID, sentinel.ErrUnavailable)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, identity := range c.identities {
		if identity.CustomerID != customerID {
			continue
		}
		for key, attr := range change.Identity.Attributes {
			identity.Attributes[key] = attr
		}
		return nil
	}
	return fmt.Errorf("identity customer %q: %w", customerID, sentinel.ErrNotFound)
}

// SearchDuplicates returns every stored identity whose attributes match all
// non-empty requested attributes. Self-match filtering is the caller's
// concern, as with the real collaborator.
func (c *MockClient) SearchDuplicates(ctx context.Context, req DuplicateSearchRequest) ([]Identity, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.FailSearch {
		return nil, fmt.Errorf("duplicate search: status 503: %w", sentinel.ErrUnavailable)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var matches []Identity
	for _, identity := range c.identities {
		if matchesAll(identity, req.Attributes) {
			matches = append(matches, cloneIdentity(identity))
		}
	}
	return matches, nil
}

func matchesAll(identity *Identity, wanted map[string]string) bool {
	matched := false
	for key, value := range wanted {
		if value == "" {
			continue
		}
		attr, ok := identity.Attributes[key]
		if !ok || attr.Value != value {
			return false
		}
		matched = true
	}
	return matched
}

func (c *MockClient) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.Latency):
		return nil
	}
}

func cloneIdentity(identity *Identity) Identity {
	copied := *identity
	copied.Attributes = make(map[string]Attribute, len(identity.Attributes))
	for key, attr := range identity.Attributes {
		copied.Attributes[key] = attr
	}
	return copied
}
