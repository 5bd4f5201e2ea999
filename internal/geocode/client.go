// Package geocode defines the contract with the geocoding collaborator that
// resolves INSEE place and country codes to display names. Lookups are keyed
// by (code, date) because a name's validity window can change over time, e.g.
// a commune merged since the subject's birth.
package geocode

import (
	"context"
	"fmt"
	"time"

	"fccertifier/pkg/platform/sentinel"
)

// Client queries the geocoding service. The interface stays small so tests
// can stub quickly; the real REST integration lives outside this service.
type Client interface {
	PlaceByCodeAndDate(ctx context.Context, code string, date time.Time) (string, error)
	CountryByCodeAndDate(ctx context.Context, code string, date time.Time) (string, error)
}

// MockClient resolves codes from fixed tables with a configurable latency to
// mimic real-world calls. Unknown codes report sentinel.ErrNotFound; a Fail
// toggle simulates a collaborator outage.
type MockClient struct {
	Latency   time.Duration
	Fail      bool
	Places    map[string]string
	Countries map[string]string
}

// NewMockClient returns a mock with a handful of deterministic INSEE codes.
func NewMockClient() *MockClient {
	return &MockClient{
		Places: map[string]string{
			"75056": "Paris",
			"13055": "Marseille",
			"69123": "Lyon",
		},
		Countries: map[string]string{
			"99100": "France",
			"99127": "Italie",
			"99134": "Espagne",
		},
	}
}

func (c *MockClient) PlaceByCodeAndDate(ctx context.Context, code string, _ time.Time) (string, error) {
	return c.lookup(ctx, c.Places, code)
}

func (c *MockClient) CountryByCodeAndDate(ctx context.Context, code string, _ time.Time) (string, error) {
	return c.lookup(ctx, c.Countries, code)
}

func (c *MockClient) lookup(ctx context.Context, table map[string]string, code string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.Latency):
	}
	if c.Fail {
		return "", fmt.Errorf("geocode lookup for %q: %w", code, sentinel.ErrUnavailable)
	}
	if name, ok := table[code]; ok {
		return name, nil
	}
	return "", fmt.Errorf("geocode code %q: %w", code, sentinel.ErrNotFound)
}
