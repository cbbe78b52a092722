package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
)

// AuthService exchanges identity provider tokens for users.
type AuthService interface {
	// Authenticate validates a sign-in token and returns its user.
	Authenticate(token string) (*User, error)
	// RequestUser identifies the caller, reusing a user already verified
	// earlier in the request pipeline.
	RequestUser(r *http.Request) (*User, error)
}

// authService implements AuthService.
type authService struct {
	validator TokenValidator
	sessions  SessionVerifier
	logger    *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(validator TokenValidator, sessions SessionVerifier, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		sessions:  sessions,
		logger:    logger.Named("auth"),
	}
}

func (s *authService) Authenticate(token string) (*User, error) {
	const op = "auth.Authenticate"

	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, apperrors.New(apperrors.KindUnauthorized, op, "token is required")
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		s.logger.Debug("Sign-in token rejected", zap.Error(err))
		return nil, apperrors.New(apperrors.KindUnauthorized, op, "invalid token")
	}
	if claims.Email == "" {
		return nil, apperrors.New(apperrors.KindUnauthorized, op, "token carries no email")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apperrors.New(apperrors.KindUnauthorized, op, "email is not verified")
	}
	return UserFromClaims(claims), nil
}

func (s *authService) RequestUser(r *http.Request) (*User, error) {
	if u, ok := GetUser(r.Context()); ok {
		return u, nil
	}
	u, err := s.sessions.CurrentUser(r)
	if err != nil || u == nil {
		return nil, apperrors.New(apperrors.KindUnauthorized, "auth.RequestUser", "authentication required")
	}
	return u, nil
}

var _ AuthService = (*authService)(nil)
