// Package normalize converts a raw FranceConnect profile into the
// certification-ready representation expected by the identity store.
// Enrichment is best-effort: a field that cannot be normalized comes back
// empty and is simply not certified downstream.
package normalize

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fccertifier/internal/certifier/models"
	"fccertifier/internal/franceconnect"
	"fccertifier/internal/geocode"
	"fccertifier/internal/platform/config"
)

// Date layouts on either side of the bridge.
const (
	BrokerDateLayout        = "2006-01-02"
	IdentityStoreDateLayout = "02/01/2006"
)

// Normalizer derives NormalizedIdentity values. Construct once and share; it
// holds no per-request state.
type Normalizer struct {
	geocode geocode.Client
	genders config.GenderCodes
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Normalizer. The timeout bounds each geocode lookup.
func New(geocodeClient geocode.Client, genders config.GenderCodes, timeout time.Duration, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		geocode: geocodeClient,
		genders: genders,
		timeout: timeout,
		logger:  logger,
	}
}

// Normalize derives the computed fields from a broker profile. It never
// fails: unparsable dates and geocode outages degrade to empty fields.
func (n *Normalizer) Normalize(ctx context.Context, profile franceconnect.UserProfile) models.NormalizedIdentity {
	identity := models.NormalizedIdentity{
		Profile:    profile,
		GenderCode: n.GenderCode(profile.Gender),
	}

	birthDate, err := time.Parse(BrokerDateLayout, profile.BirthDate)
	if err != nil {
		n.logger.WarnContext(ctx, "unparsable broker birth date, skipping date-bound normalization",
			"birthdate", profile.BirthDate,
			"error", err.Error(),
		)
		return identity
	}
	identity.BirthDate = birthDate.Format(IdentityStoreDateLayout)

	// Place and country names depend on historical validity windows, hence
	// the (code, birth date) pair. Both lookups run concurrently and swallow
	// their own failures.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		identity.BirthPlaceName = n.resolve(gctx, "birthplace", profile.BirthPlace, birthDate, n.geocode.PlaceByCodeAndDate)
		return nil
	})
	g.Go(func() error {
		identity.BirthCountryName = n.resolve(gctx, "birthcountry", profile.BirthCountry, birthDate, n.geocode.CountryByCodeAndDate)
		return nil
	})
	_ = g.Wait()

	return identity
}

// GenderCode maps the broker's gender token to the identity store's numeric
// convention. Unknown or absent tokens map to the configured neutral code.
func (n *Normalizer) GenderCode(token string) string {
	switch token {
	case franceconnect.GenderMale:
		return n.genders.Male
	case franceconnect.GenderFemale:
		return n.genders.Female
	default:
		return n.genders.Neutral
	}
}

type lookupFunc func(ctx context.Context, code string, date time.Time) (string, error)

func (n *Normalizer) resolve(ctx context.Context, field, code string, date time.Time, lookup lookupFunc) string {
	if code == "" {
		return ""
	}
	lctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	name, err := lookup(lctx, code, date)
	if err != nil {
		n.logger.WarnContext(ctx, "geocode lookup failed, leaving name uncertified",
			"field", field,
			"code", code,
			"error", err.Error(),
		)
		return ""
	}
	return name
}
