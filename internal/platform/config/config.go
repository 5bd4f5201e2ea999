package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GenderCodes holds the numeric gender convention of the identity store. The
// male/female assignment is a certifying-authority policy choice, so it is
// configuration rather than a literal at call sites.
type GenderCodes struct {
	Male    string
	Female  string
	Neutral string
}

// Duplicates configures the optional duplicate-identity soft signal.
type Duplicates struct {
	Enabled        bool
	StrictRules    []string
	NonStrictRules []string
}

// Config captures the whole environment surface so main stays lean.
type Config struct {
	Addr string

	// Identity-store client identification.
	ClientCode    string
	CertifierCode string

	// Validation ticket lifetime.
	ExpiryDelay time.Duration

	// Subject resolution when the hosting CMS runs without authentication.
	AuthenticationEnabled bool
	MockedConnectionID    string
	MockedEmail           string

	GenderCodes GenderCodes
	Duplicates  Duplicates

	// Outbound collaborator calls get a hard deadline.
	CollaboratorTimeout time.Duration
}

// FromEnv builds a Config from environment variables, falling back to the
// documented defaults.
func FromEnv() Config {
	return Config{
		Addr:                  envString("FCCERTIFIER_ADDR", ":8080"),
		ClientCode:            envString("FCCERTIFIER_CLIENT_CODE", "fccertifier-client"),
		CertifierCode:         envString("FCCERTIFIER_CERTIFIER_CODE", "fccertifier"),
		ExpiryDelay:           time.Duration(envInt("FCCERTIFIER_EXPIRES_DELAY_MINUTES", 5)) * time.Minute,
		AuthenticationEnabled: envString("FCCERTIFIER_AUTHENTICATION_ENABLED", "true") == "true",
		MockedConnectionID:    envString("FCCERTIFIER_MOCKED_CONNECTION_ID", "1"),
		MockedEmail:           envString("FCCERTIFIER_MOCKED_EMAIL", "test@test.fr"),
		GenderCodes: GenderCodes{
			// Follows the identity store's current convention.
			Male:    envString("FCCERTIFIER_GENDER_CODE_MALE", "2"),
			Female:  envString("FCCERTIFIER_GENDER_CODE_FEMALE", "1"),
			Neutral: envString("FCCERTIFIER_GENDER_CODE_NEUTRAL", "0"),
		},
		Duplicates: Duplicates{
			Enabled:        envString("FCCERTIFIER_DUPLICATES_ENABLED", "false") == "true",
			StrictRules:    envList("FCCERTIFIER_DUPLICATES_RULES_STRICT", nil),
			NonStrictRules: envList("FCCERTIFIER_DUPLICATES_RULES_NON_STRICT", nil),
		},
		CollaboratorTimeout: time.Duration(envInt("FCCERTIFIER_COLLABORATOR_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
