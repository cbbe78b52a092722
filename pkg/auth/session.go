package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// ErrNoSession means the request carries no valid session.
var ErrNoSession = errors.New("no session")

// SessionVerifier identifies the caller of a request. It has no side
// effects and may be called more than once per request.
type SessionVerifier interface {
	CurrentUser(r *http.Request) (*User, error)
}

// DefaultSessionName is the session cookie name.
const DefaultSessionName = "sc_session"

// Session value keys.
const (
	sessionKeyEmail    = "email"
	sessionKeySubject  = "sub"
	sessionKeyName     = "name"
	sessionKeyIssuedAt = "iat"
)

// SessionConfig configures the session cookie.
type SessionConfig struct {
	// Secret signs and encrypts the cookie. Any passphrase works; it is
	// hashed into keys. It must be stable across restarts and replicas.
	Secret string
	Name   string
	MaxAge time.Duration
	Cookie CookieSettings
}

// SessionManager issues and verifies the signed session cookie.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	maxAge time.Duration
	logger *zap.Logger
}

// NewSessionManager creates a cookie-backed session manager.
//
// Cookie settings:
//   - HttpOnly: true
//   - SameSite: Lax, so the cookie survives the cross-subdomain hop after sign-in
//   - Secure and Domain: from cfg.Cookie
func NewSessionManager(cfg SessionConfig, logger *zap.Logger) (*SessionManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultSessionName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}

	hashKey := sha256.Sum256([]byte(cfg.Secret))
	blockKey := sha256.Sum256([]byte("encrypt:" + cfg.Secret))

	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cfg.Cookie.Domain,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)

	return &SessionManager{
		store:  store,
		name:   cfg.Name,
		maxAge: cfg.MaxAge,
		logger: logger.Named("session"),
	}, nil
}

// CurrentUser returns the session user or ErrNoSession. A tampered or
// expired cookie is reported as ErrNoSession.
func (m *SessionManager) CurrentUser(r *http.Request) (*User, error) {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		m.logger.Debug("Rejected session cookie", zap.String("path", r.URL.Path), zap.Error(err))
		return nil, ErrNoSession
	}
	if session.IsNew {
		return nil, ErrNoSession
	}

	email, _ := session.Values[sessionKeyEmail].(string)
	if email == "" {
		return nil, ErrNoSession
	}
	if issued, ok := session.Values[sessionKeyIssuedAt].(int64); ok {
		if time.Since(time.Unix(issued, 0)) > m.maxAge {
			return nil, ErrNoSession
		}
	}

	subject, _ := session.Values[sessionKeySubject].(string)
	name, _ := session.Values[sessionKeyName].(string)
	return &User{Email: email, Subject: subject, Name: name}, nil
}

// SignIn writes a fresh session cookie for u.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *User) error {
	session, _ := m.store.New(r, m.name)
	session.Values[sessionKeyEmail] = u.Email
	session.Values[sessionKeySubject] = u.Subject
	session.Values[sessionKeyName] = u.Name
	session.Values[sessionKeyIssuedAt] = time.Now().Unix()
	return session.Save(r, w)
}

// SignOut expires the session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.New(r, m.name)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

var _ SessionVerifier = (*SessionManager)(nil)
