package certifier

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fccertifier/internal/certifier/models"
	"fccertifier/internal/certifier/normalize"
	"fccertifier/internal/certifier/store"
	"fccertifier/internal/franceconnect"
	"fccertifier/internal/geocode"
	"fccertifier/internal/identitystore"
	"fccertifier/internal/platform/config"
	derrors "fccertifier/pkg/domain-errors"
	"fccertifier/pkg/requestcontext"
)

// Justification for unit tests: the ticket lifecycle, reconciliation against
// pre-existing certifications, and listener fan-out semantics are the core of
// this module and cannot be exercised precisely through transport tests.

const testCertifierCode = "fccertifier"

var testGenders = config.GenderCodes{Male: "2", Female: "1", Neutral: "0"}

type recordingListener struct {
	mu          sync.Mutex
	certified   []models.ValidationTicket
	decertified []string
	failErr     error
	panics      bool
}

func (l *recordingListener) OnCertified(_ context.Context, ticket models.ValidationTicket) error {
	if l.panics {
		panic("listener blew up")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.certified = append(l.certified, ticket)
	return l.failErr
}

func (l *recordingListener) OnDecertified(_ context.Context, connectionID string) error {
	if l.panics {
		panic("listener blew up")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decertified = append(l.decertified, connectionID)
	return l.failErr
}

type CertifierServiceSuite struct {
	suite.Suite
	tickets  *store.InMemoryTicketStore
	identity *identitystore.MockClient
	listener *recordingListener
	service  *Service
	cfg      config.Config
}

func TestCertifierServiceSuite(t *testing.T) {
	suite.Run(t, new(CertifierServiceSuite))
}

func (s *CertifierServiceSuite) SetupTest() {
	s.cfg = config.Config{
		CertifierCode:       testCertifierCode,
		ExpiryDelay:         5 * time.Minute,
		CollaboratorTimeout: time.Second,
		GenderCodes:         testGenders,
	}
	s.buildService()
}

func (s *CertifierServiceSuite) buildService() {
	s.tickets = store.New()
	s.identity = identitystore.NewMockClient()
	s.listener = &recordingListener{}

	normalizer := normalize.New(geocode.NewMockClient(), s.cfg.GenderCodes, s.cfg.CollaboratorTimeout, slog.Default())

	var err error
	s.service, err = New(s.tickets, s.identity, normalizer, s.cfg, WithLogger(slog.Default()))
	s.Require().NoError(err)
	s.service.RegisterListener(s.listener)
}

// subjectCtx mimics what the middleware chain injects for a signed-in user.
func (s *CertifierServiceSuite) subjectCtx(connectionID, email string, now time.Time) context.Context {
	ctx := requestcontext.WithSubject(context.Background(), connectionID, email)
	return requestcontext.WithTime(ctx, now)
}

func (s *CertifierServiceSuite) seedIdentity(connectionID string, attrs map[string]identitystore.Attribute) {
	s.identity.Seed(identitystore.Identity{
		CustomerID:   "cust-" + connectionID,
		ConnectionID: connectionID,
		Attributes:   attrs,
	})
}

func validProfile() franceconnect.UserProfile {
	return franceconnect.UserProfile{
		BirthDate:         "1962-08-24",
		BirthPlace:        "75056",
		BirthCountry:      "99100",
		Email:             "a@b.com",
		FamilyName:        "Martin",
		GivenName:         "Claire",
		Gender:            "female",
		PreferredUsername: "cmartin",
	}
}

func (s *CertifierServiceSuite) TestNew() {
	s.Run("nil ticket store returns error", func() {
		_, err := New(nil, s.identity, nil, s.cfg)
		s.Error(err)
	})
}

func (s *CertifierServiceSuite) TestStartValidation() {
	now := time.Now()

	s.Run("no authenticated subject is rejected", func() {
		err := s.service.StartValidation(requestcontext.WithTime(context.Background(), now), "S1")
		s.Require().Error(err)
		s.Equal(derrors.CodeUserNotSignedIn, derrors.CodeOf(err))
	})

	s.Run("empty session key is rejected", func() {
		err := s.service.StartValidation(s.subjectCtx("42", "a@b.com", now), "")
		s.Require().Error(err)
		s.Equal(derrors.CodeBadRequest, derrors.CodeOf(err))
	})

	s.Run("records a ticket bound to the subject", func() {
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))

		ticket, err := s.tickets.Consume(ctx, "S1", now)
		s.Require().NoError(err)
		s.Equal("42", ticket.ConnectionID)
		s.Equal("a@b.com", ticket.Email)
		s.Equal(now.Add(5*time.Minute), ticket.ExpiresAt)
	})
}

func (s *CertifierServiceSuite) TestValidate() {
	now := time.Now()

	s.Run("start then validate certifies and consumes the ticket", func() {
		s.buildService()
		s.seedIdentity("42", nil)
		ctx := s.subjectCtx("42", "a@b.com", now)

		s.Require().NoError(s.service.StartValidation(ctx, "S1"))
		s.Require().NoError(s.service.Validate(ctx, "S1", validProfile()))

		s.Require().Len(s.listener.certified, 1)
		s.Equal("42", s.listener.certified[0].ConnectionID)

		// Ticket is single-use: a second validate reports an expired session.
		err := s.service.Validate(ctx, "S1", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeSessionExpired, derrors.CodeOf(err))
	})

	s.Run("validate without start reports an expired session", func() {
		s.buildService()
		err := s.service.Validate(s.subjectCtx("42", "a@b.com", now), "S9", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeSessionExpired, derrors.CodeOf(err))
	})

	s.Run("validate after the expiry window reports an expired session", func() {
		s.buildService()
		s.seedIdentity("42", nil)
		s.Require().NoError(s.service.StartValidation(s.subjectCtx("42", "a@b.com", now), "S1"))

		late := s.subjectCtx("42", "a@b.com", now.Add(6*time.Minute))
		err := s.service.Validate(late, "S1", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeSessionExpired, derrors.CodeOf(err))
		s.Empty(s.listener.certified)
	})

	s.Run("ticket is consumed even when certification fails", func() {
		s.buildService()
		// No identity seeded: certification fails after consume.
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))

		err := s.service.Validate(ctx, "S1", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeIdentityNotFound, derrors.CodeOf(err))

		err = s.service.Validate(ctx, "S1", validProfile())
		s.Equal(derrors.CodeSessionExpired, derrors.CodeOf(err))
	})
}

func (s *CertifierServiceSuite) TestCertify() {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	s.Run("missing identity record fails without notifying listeners", func() {
		s.buildService()
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))

		err := s.service.Validate(ctx, "S1", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeIdentityNotFound, derrors.CodeOf(err))
		s.Empty(s.listener.certified)
	})

	s.Run("certifies normalized and raw attributes with the certifier tag", func() {
		s.buildService()
		s.seedIdentity("42", nil)
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))
		s.Require().NoError(s.service.Validate(ctx, "S1", validProfile()))

		identity, err := s.identity.GetByConnectionID(ctx, "42")
		s.Require().NoError(err)

		birthdate := identity.Attributes[models.KeyBirthDate]
		s.Equal("24/08/1962", birthdate.Value)
		s.Require().NotNil(birthdate.Certificate)
		s.Equal(testCertifierCode, birthdate.Certificate.CertifierCode)
		s.Equal(now, birthdate.Certificate.CertificateDate)

		s.Equal("1962-08-24", identity.Attributes[models.KeyRawBirthDate].Value)
		s.Equal("Paris", identity.Attributes[models.KeyBirthPlace].Value)
		s.Equal("France", identity.Attributes[models.KeyBirthCountry].Value)
		s.Equal("1", identity.Attributes[models.KeyGender].Value)
		s.Equal("Claire", identity.Attributes[models.KeyFirstName].Value)
		s.Equal("Martin", identity.Attributes[models.KeyFamilyName].Value)
		s.Equal("cmartin", identity.Attributes[models.KeyPreferredUsername].Value)
	})

	s.Run("unparsable birth date omits the birthdate key entirely", func() {
		s.buildService()
		s.seedIdentity("42", nil)
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))

		profile := validProfile()
		profile.BirthDate = "not-a-date"
		s.Require().NoError(s.service.Validate(ctx, "S1", profile))

		identity, err := s.identity.GetByConnectionID(ctx, "42")
		s.Require().NoError(err)
		s.NotContains(identity.Attributes, models.KeyBirthDate)
		s.NotContains(identity.Attributes, models.KeyBirthPlace)
		s.NotContains(identity.Attributes, models.KeyBirthCountry)
		// Raw broker values are still certified.
		s.Equal("not-a-date", identity.Attributes[models.KeyRawBirthDate].Value)
	})

	s.Run("identity store rejection surfaces as certification failed", func() {
		s.buildService()
		s.seedIdentity("42", nil)
		s.identity.FailUpdate = true
		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))

		err := s.service.Validate(ctx, "S1", validProfile())
		s.Require().Error(err)
		s.Equal(derrors.CodeCertificationFailed, derrors.CodeOf(err))
		s.Empty(s.listener.certified)
	})

	s.Run("listener failures never abort the fan-out", func() {
		s.buildService()
		s.seedIdentity("42", nil)

		panicking := &recordingListener{panics: true}
		failing := &recordingListener{failErr: context.DeadlineExceeded}
		s.service.RegisterListener(panicking)
		s.service.RegisterListener(failing)
		healthy := &recordingListener{}
		s.service.RegisterListener(healthy)

		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.StartValidation(ctx, "S1"))
		s.Require().NoError(s.service.Validate(ctx, "S1", validProfile()))

		s.Len(s.listener.certified, 1)
		s.Len(failing.certified, 1)
		s.Len(healthy.certified, 1)
	})
}

func (s *CertifierServiceSuite) TestDecertify() {
	now := time.Now()

	ownCert := &identitystore.Certificate{CertifierCode: testCertifierCode, CertificateDate: now}
	foreignCert := &identitystore.Certificate{CertifierCode: "agent-certifier", CertificateDate: now}

	s.Run("clears only attributes certified by this module", func() {
		s.buildService()
		s.seedIdentity("42", map[string]identitystore.Attribute{
			models.KeyGender:     {Key: models.KeyGender, Value: "1", Certificate: ownCert},
			models.KeyBirthDate:  {Key: models.KeyBirthDate, Value: "24/08/1962", Certificate: ownCert},
			models.KeyFamilyName: {Key: models.KeyFamilyName, Value: "Martin", Certificate: foreignCert},
			"address":            {Key: "address", Value: "1 rue de Rivoli"},
		})

		ctx := s.subjectCtx("42", "a@b.com", now)
		s.Require().NoError(s.service.Decertify(ctx, "42"))

		identity, err := s.identity.GetByConnectionID(ctx, "42")
		s.Require().NoError(err)

		s.Empty(identity.Attributes[models.KeyGender].Value)
		s.Nil(identity.Attributes[models.KeyGender].Certificate)
		s.Empty(identity.Attributes[models.KeyBirthDate].Value)

		// Foreign certification and uncertified attributes are untouched.
		s.Equal("Martin", identity.Attributes[models.KeyFamilyName].Value)
		s.Require().NotNil(identity.Attributes[models.KeyFamilyName].Certificate)
		s.Equal("agent-certifier", identity.Attributes[models.KeyFamilyName].Certificate.CertifierCode)
		s.Equal("1 rue de Rivoli", identity.Attributes["address"].Value)

		s.Equal([]string{"42"}, s.listener.decertified)
	})

	s.Run("nothing certified by this module is a quiet no-op", func() {
		s.buildService()
		s.seedIdentity("42", map[string]identitystore.Attribute{
			models.KeyFamilyName: {Key: models.KeyFamilyName, Value: "Martin", Certificate: foreignCert},
		})

		s.Require().NoError(s.service.Decertify(s.subjectCtx("42", "a@b.com", now), "42"))
		s.Empty(s.listener.decertified)
	})

	s.Run("unknown subject reports identity not found", func() {
		s.buildService()
		err := s.service.Decertify(s.subjectCtx("42", "a@b.com", now), "42")
		s.Require().Error(err)
		s.Equal(derrors.CodeIdentityNotFound, derrors.CodeOf(err))
	})
}

func (s *CertifierServiceSuite) TestFindSuspiciousDuplicates() {
	now := time.Now()

	duplicateAttrs := func() map[string]identitystore.Attribute {
		return map[string]identitystore.Attribute{
			models.KeyPreferredUsername: {Key: models.KeyPreferredUsername, Value: "cmartin"},
			models.KeyGender:            {Key: models.KeyGender, Value: "1"},
			models.KeyBirthDate:         {Key: models.KeyBirthDate, Value: "24/08/1962"},
			models.KeyBirthCountry:      {Key: models.KeyBirthCountry, Value: "99100"},
			models.KeyBirthPlace:        {Key: models.KeyBirthPlace, Value: "75056"},
			models.KeyFirstName:         {Key: models.KeyFirstName, Value: "Claire"},
			models.KeyFamilyName:        {Key: models.KeyFamilyName, Value: "Martin"},
		}
	}

	s.Run("disabled flag returns empty, never an error", func() {
		s.buildService()
		matches, err := s.service.SuspiciousDuplicates(s.subjectCtx("42", "a@b.com", now), validProfile(), true)
		s.NoError(err)
		s.Empty(matches)
	})

	s.Run("self-matches are excluded", func() {
		s.cfg.Duplicates = config.Duplicates{
			Enabled:     true,
			StrictRules: []string{"RG_GEN_StrictDoublon_01"},
		}
		s.buildService()
		s.seedIdentity("42", duplicateAttrs())
		s.seedIdentity("77", duplicateAttrs())

		matches, err := s.service.SuspiciousDuplicates(s.subjectCtx("42", "a@b.com", now), validProfile(), true)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal("77", matches[0].ConnectionID)
	})

	s.Run("collaborator outage degrades to empty", func() {
		s.cfg.Duplicates = config.Duplicates{Enabled: true, NonStrictRules: []string{"RG_GEN_Doublon_01"}}
		s.buildService()
		s.identity.FailSearch = true

		matches, err := s.service.SuspiciousDuplicates(s.subjectCtx("42", "a@b.com", now), validProfile(), false)
		s.NoError(err)
		s.Empty(matches)
	})
}
