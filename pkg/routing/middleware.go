package routing

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/auth"
)

type contextKey string

const scopeKey contextKey = "routing_scope"

// Scope is what the gate learned about a request, for handlers.
type Scope struct {
	Host HostInfo
	// Tenant is the host's tenant, if any.
	Tenant string
	// Rewritten is true when the gate rewrote the path into the tenant or
	// team namespace. Namespace handlers must refuse requests without it.
	Rewritten bool
}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// GetScope returns the scope set by the gate.
func GetScope(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	return s, ok
}

// Gate is the routing middleware.
type Gate struct {
	classifier *Classifier
	config     GateConfig
	verifier   auth.SessionVerifier
	directory  Directory
	logger     *zap.Logger
}

// NewGate creates the routing gate.
func NewGate(classifier *Classifier, config GateConfig, verifier auth.SessionVerifier, directory Directory, logger *zap.Logger) *Gate {
	return &Gate{
		classifier: classifier,
		config:     config.withDefaults(),
		verifier:   verifier,
		directory:  directory,
		logger:     logger.Named("gate"),
	}
}

// Config returns the effective path conventions.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Classifier returns the host classifier.
func (g *Gate) Classifier() *Classifier {
	return g.classifier
}

// Classify classifies the host of r.
func (g *Gate) Classify(r *http.Request) HostInfo {
	return g.classifier.Classify(r.Host, r.URL.Query().Get("tenant"))
}

// Middleware applies the routing decision. The session is verified at most
// once, and only when the decision depends on it. Any verification failure
// counts as unauthenticated.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := RequestInfo{
			Host:     g.Classify(r),
			Scheme:   RequestScheme(r),
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
		}

		ctx := r.Context()
		if g.config.NeedsSession(info) {
			user, err := g.verifier.CurrentUser(r)
			if err == nil && user != nil {
				info.Authenticated = true
				ctx = auth.WithUser(ctx, user)
				if info.Host.Kind == HostTeam {
					info.Privileged = g.isPrivileged(ctx, user.Email)
				}
			}
		}

		decision := g.config.Decide(info)
		scope := Scope{Host: info.Host, Tenant: info.Host.Tenant}

		switch decision.Action {
		case Redirect:
			http.Redirect(w, r, decision.Location, decision.StatusCode)
		case Deny:
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case Rewrite:
			scope.Rewritten = true
			rewritten := r.Clone(WithScope(ctx, scope))
			rewritten.URL.Path = decision.Path
			rewritten.URL.RawPath = ""
			next.ServeHTTP(w, rewritten)
		default:
			next.ServeHTTP(w, r.WithContext(WithScope(ctx, scope)))
		}
	})
}

func (g *Gate) isPrivileged(ctx context.Context, email string) bool {
	ok, err := g.directory.IsPrivilegedIdentity(ctx, email)
	if err != nil {
		g.logger.Warn("Privilege lookup failed, denying team access", zap.Error(err))
		return false
	}
	return ok
}

// RequestScheme returns the scheme the client used, honouring a proxy's
// X-Forwarded-Proto.
func RequestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
