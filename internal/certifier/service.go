// Package certifier implements the validation-ticket lifecycle and the
// attribute-certification reconciliation against the identity store.
package certifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fccertifier/internal/certifier/metrics"
	"fccertifier/internal/certifier/models"
	"fccertifier/internal/certifier/normalize"
	"fccertifier/internal/certifier/store"
	"fccertifier/internal/franceconnect"
	"fccertifier/internal/identitystore"
	"fccertifier/internal/platform/config"
	derrors "fccertifier/pkg/domain-errors"
	"fccertifier/pkg/platform/sentinel"
	"fccertifier/pkg/requestcontext"
)

// Listener reacts to completed certifications so other subsystems (dashboard,
// audit trail) can follow along. Notification is synchronous and best-effort:
// a failing listener is logged and skipped, never rolled back.
type Listener interface {
	OnCertified(ctx context.Context, ticket models.ValidationTicket) error
	OnDecertified(ctx context.Context, connectionID string) error
}

// Service coordinates tickets, normalization and the identity-store
// collaborator. The ticket store is injected and owned by this instance.
type Service struct {
	tickets    store.TicketStore
	identities identitystore.Client
	normalizer *normalize.Normalizer

	certifierCode string
	clientCode    string
	expiryDelay   time.Duration
	duplicates    config.Duplicates
	callTimeout   time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the certifier metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the certifier service.
func New(tickets store.TicketStore, identities identitystore.Client, normalizer *normalize.Normalizer, cfg config.Config, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if identities == nil {
		return nil, fmt.Errorf("identity store client is required")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}

	svc := &Service{
		tickets:       tickets,
		identities:    identities,
		normalizer:    normalizer,
		certifierCode: cfg.CertifierCode,
		clientCode:    cfg.ClientCode,
		expiryDelay:   cfg.ExpiryDelay,
		duplicates:    cfg.Duplicates,
		callTimeout:   cfg.CollaboratorTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterListener adds an observer for certification outcomes.
func (s *Service) RegisterListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// StartValidation opens a validation flow for the session: it records a fresh
// single-use ticket carrying the authenticated subject and an expiry of
// now + the configured delay. A prior ticket for the session is replaced.
func (s *Service) StartValidation(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return derrors.New(derrors.CodeBadRequest, "session key is required")
	}
	connectionID := requestcontext.ConnectionID(ctx)
	if connectionID == "" {
		return derrors.New(derrors.CodeUserNotSignedIn, "no authenticated subject")
	}

	now := requestcontext.Now(ctx)
	ticket := models.ValidationTicket{
		SessionKey:   sessionKey,
		ConnectionID: connectionID,
		Email:        requestcontext.SubjectEmail(ctx),
		ExpiresAt:    now.Add(s.expiryDelay),
	}
	if err := s.tickets.Put(ctx, ticket); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "failed to record validation ticket")
	}
	return nil
}

// Validate consumes the session's ticket, normalizes the broker profile and
// certifies the subject's attributes. The ticket is gone after this call
// whether certification succeeds or not.
func (s *Service) Validate(ctx context.Context, sessionKey string, profile franceconnect.UserProfile) error {
	ticket, err := s.tickets.Consume(ctx, sessionKey, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrExpired):
			return derrors.Wrap(err, derrors.CodeSessionExpired, "validation ticket expired")
		case errors.Is(err, sentinel.ErrNotFound):
			return derrors.Wrap(err, derrors.CodeSessionExpired, "no validation in progress")
		default:
			return derrors.Wrap(err, derrors.CodeInternal, "failed to consume validation ticket")
		}
	}

	identity := s.normalizer.Normalize(ctx, profile)
	ticket.Identity = &identity

	// Soft fraud signal only: matches are logged, never block certification.
	if matches, _ := s.FindSuspiciousDuplicates(ctx, ticket.ConnectionID, identity, true); len(matches) > 0 {
		s.logger.WarnContext(ctx, "suspicious duplicate identities",
			"connection_id", ticket.ConnectionID,
			"count", len(matches),
		)
	}

	return s.Certify(ctx, ticket)
}

// SuspiciousDuplicates normalizes a broker profile for the authenticated
// subject and runs the duplicate soft signal against it.
func (s *Service) SuspiciousDuplicates(ctx context.Context, profile franceconnect.UserProfile, strict bool) ([]identitystore.Identity, error) {
	connectionID := requestcontext.ConnectionID(ctx)
	if connectionID == "" {
		return nil, derrors.New(derrors.CodeUserNotSignedIn, "no authenticated subject")
	}
	identity := s.normalizer.Normalize(ctx, profile)
	return s.FindSuspiciousDuplicates(ctx, connectionID, identity, strict)
}

// Certify pushes the ticket's certified attributes to the identity store and
// notifies listeners on success. Failures are terminal for the request; the
// flow restarts with StartValidation.
func (s *Service) Certify(ctx context.Context, ticket models.ValidationTicket) error {
	if ticket.Identity == nil {
		return derrors.New(derrors.CodeBadRequest, "ticket carries no normalized identity")
	}

	identity, err := s.getIdentity(ctx, ticket.ConnectionID)
	if err != nil {
		if derrors.CodeOf(err) == derrors.CodeIdentityNotFound {
			s.metrics.IncrementCertification("identity_not_found")
		} else {
			s.metrics.IncrementCertification("failed")
		}
		return err
	}

	now := requestcontext.Now(ctx)
	attributes := BuildAttributes(*ticket.Identity, s.certifierCode, now)
	change := identitystore.IdentityChange{
		Identity: identitystore.Identity{
			CustomerID:   identity.CustomerID,
			ConnectionID: identity.ConnectionID,
			Attributes:   toStoreAttributes(attributes),
		},
		Author: identitystore.Author{ApplicationCode: s.clientCode},
	}

	if err := s.updateIdentity(ctx, "certify", identity.CustomerID, change); err != nil {
		s.logger.ErrorContext(ctx, "attribute certification failed",
			"connection_id", ticket.ConnectionID,
			"customer_id", identity.CustomerID,
			"response", err.Error(),
		)
		s.metrics.IncrementCertification("failed")
		return derrors.Wrap(err, derrors.CodeCertificationFailed, "identity store rejected the certification")
	}

	s.metrics.IncrementCertification("ok")
	s.notify(ctx, func(l Listener) error { return l.OnCertified(ctx, ticket) })
	return nil
}

// Decertify clears every attribute this certifier has certified for the
// subject, leaving attributes certified by other authorities untouched, and
// pushes the cleared state back to the identity store.
func (s *Service) Decertify(ctx context.Context, connectionID string) error {
	identity, err := s.getIdentity(ctx, connectionID)
	if err != nil {
		s.metrics.IncrementDecertification("failed")
		return err
	}

	cleared := make(map[string]identitystore.Attribute)
	for _, key := range models.OwnedKeys {
		attr, ok := identity.Attributes[key]
		if !ok || attr.Certificate == nil || attr.Certificate.CertifierCode != s.certifierCode {
			continue
		}
		cleared[key] = identitystore.Attribute{Key: key}
	}
	if len(cleared) == 0 {
		s.metrics.IncrementDecertification("noop")
		return nil
	}

	change := identitystore.IdentityChange{
		Identity: identitystore.Identity{
			CustomerID:   identity.CustomerID,
			ConnectionID: identity.ConnectionID,
			Attributes:   cleared,
		},
		Author: identitystore.Author{ApplicationCode: s.clientCode},
	}
	if err := s.updateIdentity(ctx, "decertify", identity.CustomerID, change); err != nil {
		s.logger.ErrorContext(ctx, "certification removal failed",
			"connection_id", connectionID,
			"customer_id", identity.CustomerID,
			"response", err.Error(),
		)
		s.metrics.IncrementDecertification("failed")
		return derrors.Wrap(err, derrors.CodeCertificationFailed, "identity store rejected the removal")
	}

	s.metrics.IncrementDecertification("ok")
	s.notify(ctx, func(l Listener) error { return l.OnDecertified(ctx, connectionID) })
	return nil
}

// Identity returns the subject's current identity-store record.
func (s *Service) Identity(ctx context.Context, connectionID string) (*identitystore.Identity, error) {
	return s.getIdentity(ctx, connectionID)
}

// FindSuspiciousDuplicates asks the duplicate-search collaborator for
// identities resembling the subject's, as a soft fraud signal. Self-matches
// are excluded. When the feature flag is off, or the collaborator fails, the
// signal degrades to an empty result rather than an error.
func (s *Service) FindSuspiciousDuplicates(ctx context.Context, connectionID string, identity models.NormalizedIdentity, strict bool) ([]identitystore.Identity, error) {
	if !s.duplicates.Enabled {
		s.metrics.IncrementDuplicateSearch("disabled")
		return nil, nil
	}

	rules := s.duplicates.NonStrictRules
	if strict {
		rules = s.duplicates.StrictRules
	}
	req := identitystore.DuplicateSearchRequest{
		RuleCodes: rules,
		Attributes: map[string]string{
			models.KeyPreferredUsername: identity.Profile.PreferredUsername,
			models.KeyGender:            identity.GenderCode,
			models.KeyBirthDate:         identity.BirthDate,
			models.KeyBirthCountry:      identity.Profile.BirthCountry,
			models.KeyBirthPlace:        identity.Profile.BirthPlace,
			models.KeyFirstName:         identity.Profile.GivenName,
			models.KeyFamilyName:        identity.Profile.FamilyName,
		},
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	found, err := s.identities.SearchDuplicates(cctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate search failed, degrading to empty signal",
			"connection_id", connectionID,
			"error", err.Error(),
		)
		s.metrics.IncrementDuplicateSearch("failed")
		return nil, nil
	}

	matches := make([]identitystore.Identity, 0, len(found))
	for _, candidate := range found {
		if candidate.ConnectionID == connectionID {
			continue
		}
		matches = append(matches, candidate)
	}
	s.metrics.IncrementDuplicateSearch("ok")
	return matches, nil
}

func (s *Service) getIdentity(ctx context.Context, connectionID string) (*identitystore.Identity, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start := time.Now()
	identity, err := s.identities.GetByConnectionID(cctx, connectionID)
	s.metrics.ObserveIdentityStoreLatency("get", time.Since(start))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "no identity record for subject",
				"connection_id", connectionID,
			)
			return nil, derrors.Wrap(err, derrors.CodeIdentityNotFound, "no identity record for subject")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "identity lookup failed")
	}
	return identity, nil
}

func (s *Service) updateIdentity(ctx context.Context, operation, customerID string, change identitystore.IdentityChange) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start := time.Now()
	err := s.identities.Update(cctx, customerID, change)
	s.metrics.ObserveIdentityStoreLatency(operation, time.Since(start))
	return err
}

// notify runs every registered listener synchronously. A listener error or
// panic is logged and the remaining listeners still run; the completed
// certification is never rolled back.
func (s *Service) notify(ctx context.Context, call func(Listener) error) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.ErrorContext(ctx, "certification listener panicked", "panic", rec)
				}
			}()
			if err := call(l); err != nil {
				s.logger.ErrorContext(ctx, "certification listener failed", "error", err.Error())
			}
		}()
	}
}

func toStoreAttributes(attributes []models.CertifiedAttribute) map[string]identitystore.Attribute {
	out := make(map[string]identitystore.Attribute, len(attributes))
	for _, attr := range attributes {
		out[attr.Key] = identitystore.Attribute{
			Key:   attr.Key,
			Value: attr.Value,
			Certificate: &identitystore.Certificate{
				CertifierCode:   attr.CertifierCode,
				CertificateDate: attr.CertifiedAt,
			},
		}
	}
	return out
}
