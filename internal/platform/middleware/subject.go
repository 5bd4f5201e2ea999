package middleware

import (
	"net/http"

	"fccertifier/pkg/requestcontext"
)

// Headers the hosting CMS front sets after its own authentication step. The
// certifier never performs authentication itself; it trusts this narrow
// contract.
const (
	HeaderSessionKey   = "X-Session-Key"
	HeaderConnectionID = "X-Connection-Id"
	HeaderSubjectEmail = "X-Subject-Email"
)

// SubjectConfig mirrors the reference behavior of running with authentication
// disabled: a fixed mocked subject is used instead of the request headers.
type SubjectConfig struct {
	AuthenticationEnabled bool
	MockedConnectionID    string
	MockedEmail           string
}

// Subject extracts the session key and the authenticated subject from the
// request and puts them on the context. Missing subjects are not rejected
// here; services decide whether a signed-in subject is required.
func Subject(cfg SubjectConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithSessionKey(r.Context(), r.Header.Get(HeaderSessionKey))
			if cfg.AuthenticationEnabled {
				ctx = requestcontext.WithSubject(ctx,
					r.Header.Get(HeaderConnectionID),
					r.Header.Get(HeaderSubjectEmail),
				)
			} else {
				ctx = requestcontext.WithSubject(ctx, cfg.MockedConnectionID, cfg.MockedEmail)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
