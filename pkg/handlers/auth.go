package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/logging"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/routing"
)

// SessionWriter issues and clears the session cookie.
type SessionWriter interface {
	SignIn(w http.ResponseWriter, r *http.Request, u *auth.User) error
	SignOut(w http.ResponseWriter, r *http.Request) error
}

// HostClassifier classifies the host a request arrived on.
type HostClassifier interface {
	Classify(r *http.Request) routing.HostInfo
}

// SignInRequest for POST /api/auth/signin
type SignInRequest struct {
	Token string `json:"token"`
}

// SignInResponse tells the client where to go next. RedirectURL is empty
// when the current host is already the right one.
type SignInResponse struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

// MeResponse for GET /api/auth/me
type MeResponse struct {
	Email      string   `json:"email"`
	Name       string   `json:"name,omitempty"`
	Privileged bool     `json:"privileged"`
	Tenants    []string `json:"tenants"`
}

// AuthHandler handles sign-in, sign-out and identity lookups.
type AuthHandler struct {
	authService   auth.AuthService
	sessions      SessionWriter
	hosts         HostClassifier
	directory     repositories.TenantRepository
	teamSubdomain string
	auditor       *audit.SecurityAuditor
	logger        *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	authService auth.AuthService,
	sessions SessionWriter,
	hosts HostClassifier,
	directory repositories.TenantRepository,
	teamSubdomain string,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		sessions:      sessions,
		hosts:         hosts,
		directory:     directory,
		teamSubdomain: teamSubdomain,
		auditor:       auditor,
		logger:        logger.Named("auth-handler"),
	}
}

// RegisterRoutes registers the auth routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/signin", h.SignIn)
	mux.HandleFunc("POST /api/auth/signout", h.SignOut)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireUser(h.Me))
}

// SignIn handles POST /api/auth/signin. It exchanges an identity provider
// token for a session cookie and computes the host the user belongs on.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", h.logger)
		return
	}

	user, err := h.authService.Authenticate(req.Token)
	if err != nil {
		h.auditor.LogSignInFailure(r, apperrors.MessageOf(err))
		writeAppError(w, err, h.logger)
		return
	}

	if err := h.sessions.SignIn(w, r, user); err != nil {
		h.logger.Error("Failed to issue session", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "session_failed", "Failed to start session"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// The session is valid either way; a directory outage only costs the
	// redirect hint.
	target, err := routing.SignInTarget(r.Context(), h.hosts.Classify(r), routing.RequestScheme(r), user.Email, h.teamSubdomain, h.directory)
	if err != nil {
		h.logger.Warn("Failed to compute sign-in target",
			logging.Email("email", user.Email),
			logging.Error(err))
		target = ""
	}

	h.auditor.LogSignIn(r, user.Email)
	writeResponse(w, http.StatusOK, SignInResponse{Email: user.Email, RedirectURL: target}, h.logger)
}

// SignOut handles POST /api/auth/signout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(w, r); err != nil {
		h.logger.Error("Failed to clear session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.GetUser(ctx)

	privileged, err := h.directory.IsPrivilegedIdentity(ctx, user.Email)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	tenants, err := h.directory.GetSubdomainsByEmail(ctx, user.Email)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	writeResponse(w, http.StatusOK, MeResponse{
		Email:      user.Email,
		Name:       user.Name,
		Privileged: privileged,
		Tenants:    tenants,
	}, h.logger)
}
