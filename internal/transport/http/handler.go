// Package httptransport is the thin JSON layer over the certifier service.
// It delegates to the service without embedding business logic so transport
// concerns remain isolated. Views and templates belong to the hosting CMS.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fccertifier/internal/franceconnect"
	"fccertifier/internal/identitystore"
	derrors "fccertifier/pkg/domain-errors"
	"fccertifier/pkg/platform/httputil"
	"fccertifier/pkg/requestcontext"
)

// Service is the certifier surface the transport consumes.
type Service interface {
	StartValidation(ctx context.Context, sessionKey string) error
	Validate(ctx context.Context, sessionKey string, profile franceconnect.UserProfile) error
	Decertify(ctx context.Context, connectionID string) error
	Identity(ctx context.Context, connectionID string) (*identitystore.Identity, error)
	SuspiciousDuplicates(ctx context.Context, profile franceconnect.UserProfile, strict bool) ([]identitystore.Identity, error)
}

// Handler wires certifier endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a certifier handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the certifier endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/certifier/start", h.handleStart)
	r.Post("/certifier/validate", h.handleValidate)
	r.Get("/certifier/identity", h.handleIdentity)
	r.Delete("/certifier/certification", h.handleDecertify)
	r.Post("/certifier/duplicates", h.handleDuplicates)
}

// handleStart opens a validation flow for the caller's session. The caller is
// then expected to run the out-of-scope broker handoff and come back with the
// profile on /certifier/validate.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionKey := requestcontext.SessionKey(ctx)
	if err := h.service.StartValidation(ctx, sessionKey); err != nil {
		h.logError(ctx, "start validation", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleValidate receives the broker profile fetched for this session and
// runs normalization plus certification.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var profile franceconnect.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid profile payload"))
		return
	}

	if err := h.service.Validate(ctx, requestcontext.SessionKey(ctx), profile); err != nil {
		h.logError(ctx, "validate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "certified"})
}

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connectionID, ok := h.requireSubject(ctx, w)
	if !ok {
		return
	}

	identity, err := h.service.Identity(ctx, connectionID)
	if err != nil {
		h.logError(ctx, "identity lookup", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleDecertify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connectionID, ok := h.requireSubject(ctx, w)
	if !ok {
		return
	}

	if err := h.service.Decertify(ctx, connectionID); err != nil {
		h.logError(ctx, "decertify", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "decertified"})
}

// handleDuplicates runs the duplicate-identity soft signal against a broker
// profile without touching the ticket lifecycle.
func (h *Handler) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireSubject(ctx, w); !ok {
		return
	}

	var profile franceconnect.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid profile payload"))
		return
	}

	strict := r.URL.Query().Get("strict") == "true"
	matches, err := h.service.SuspiciousDuplicates(ctx, profile, strict)
	if err != nil {
		h.logError(ctx, "duplicate search", err)
		httputil.WriteError(w, err)
		return
	}
	if matches == nil {
		matches = []identitystore.Identity{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"identities": matches})
}

func (h *Handler) requireSubject(ctx context.Context, w http.ResponseWriter) (string, bool) {
	connectionID := requestcontext.ConnectionID(ctx)
	if connectionID == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeUserNotSignedIn, "no authenticated subject"))
		return "", false
	}
	return connectionID, true
}

func (h *Handler) logError(ctx context.Context, operation string, err error) {
	h.logger.WarnContext(ctx, "certifier request failed",
		"request_id", requestcontext.RequestID(ctx),
		"operation", operation,
		"code", string(derrors.CodeOf(err)),
		"error", err.Error(),
	)
}
