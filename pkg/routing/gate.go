package routing

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Action is the terminal state of a routing decision.
type Action int

const (
	PassThrough Action = iota
	Redirect
	Rewrite
	Deny
)

func (a Action) String() string {
	switch a {
	case PassThrough:
		return "pass"
	case Redirect:
		return "redirect"
	case Rewrite:
		return "rewrite"
	default:
		return "deny"
	}
}

// RequestInfo is everything a decision depends on.
type RequestInfo struct {
	Host          HostInfo
	Scheme        string
	Path          string
	RawQuery      string
	Authenticated bool
	Privileged    bool
}

// Decision is the outcome for one request.
type Decision struct {
	Action Action
	// Location and StatusCode are set for Redirect.
	Location   string
	StatusCode int
	// Path is the internal path for Rewrite.
	Path string
	// Tenant is the resolved tenant, if any.
	Tenant string
}

// GateConfig holds the path conventions.
type GateConfig struct {
	LoginPath   string
	APIPrefix   string
	PublicPaths []string
	// TenantPrefix and TeamPrefix name the rewritten namespaces.
	TenantPrefix string
	TeamPrefix   string
}

// DefaultGateConfig returns the standard path conventions.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		LoginPath:    "/login",
		APIPrefix:    "/api",
		PublicPaths:  []string{"/login", "/auth/callback", "/reset-password", "/health", "/ping"},
		TenantPrefix: "/s",
		TeamPrefix:   "/team",
	}
}

func (c GateConfig) withDefaults() GateConfig {
	d := DefaultGateConfig()
	if c.LoginPath == "" {
		c.LoginPath = d.LoginPath
	}
	if c.APIPrefix == "" {
		c.APIPrefix = d.APIPrefix
	}
	if c.PublicPaths == nil {
		c.PublicPaths = d.PublicPaths
	}
	if c.TenantPrefix == "" {
		c.TenantPrefix = d.TenantPrefix
	}
	if c.TeamPrefix == "" {
		c.TeamPrefix = d.TeamPrefix
	}
	return c
}

// IsAPI reports whether path is under the API prefix.
func (c GateConfig) IsAPI(path string) bool {
	return hasPathPrefix(path, c.APIPrefix)
}

// IsPublic reports whether path is one of the shared public paths.
func (c GateConfig) IsPublic(path string) bool {
	for _, p := range c.PublicPaths {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

// NeedsSession reports whether Decide would read the authentication state
// of req. The middleware verifies the session only when this is true.
func (c GateConfig) NeedsSession(req RequestInfo) bool {
	switch req.Host.Kind {
	case HostTenant, HostTeam:
	default:
		return false
	}
	if c.IsAPI(req.Path) {
		return false
	}
	if c.IsPublic(req.Path) {
		return req.Path == c.LoginPath
	}
	return true
}

// Decide maps a request to its routing outcome.
func (c GateConfig) Decide(req RequestInfo) Decision {
	host := req.Host

	if host.Kind == HostWWW {
		target := url.URL{
			Scheme:   req.Scheme,
			Host:     host.HostForRoot(),
			Path:     req.Path,
			RawQuery: req.RawQuery,
		}
		return Decision{Action: Redirect, Location: target.String(), StatusCode: http.StatusMovedPermanently}
	}

	if host.Kind != HostTenant && host.Kind != HostTeam {
		return Decision{Action: PassThrough}
	}

	if c.IsAPI(req.Path) {
		return Decision{Action: PassThrough, Tenant: host.Tenant}
	}

	if c.IsPublic(req.Path) {
		if req.Authenticated && req.Path == c.LoginPath {
			return Decision{Action: Redirect, Location: "/", StatusCode: http.StatusFound, Tenant: host.Tenant}
		}
		return Decision{Action: PassThrough, Tenant: host.Tenant}
	}

	if !req.Authenticated {
		return Decision{
			Action:     Redirect,
			Location:   c.LoginPath + "?redirect=" + escapeReturnPath(req.Path, req.RawQuery),
			StatusCode: http.StatusFound,
			Tenant:     host.Tenant,
		}
	}

	if host.Kind == HostTeam {
		if !req.Privileged {
			return Decision{Action: Deny, StatusCode: http.StatusForbidden}
		}
		return Decision{Action: Rewrite, Path: joinPath(c.TeamPrefix, req.Path)}
	}

	return Decision{
		Action: Rewrite,
		Path:   joinPath(c.TenantPrefix+"/"+host.Tenant, req.Path),
		Tenant: host.Tenant,
	}
}

// HostForRoot returns the bare root host, keeping the port.
func (h HostInfo) HostForRoot() string {
	if h.Port == "" {
		return h.RootDomain
	}
	return h.RootDomain + ":" + h.Port
}

// escapeReturnPath query-escapes a return target but keeps slashes
// readable, so /reports becomes redirect=/reports.
func escapeReturnPath(path, rawQuery string) string {
	target := path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
}

func joinPath(prefix, path string) string {
	if path == "" || path == "/" {
		return prefix
	}
	return prefix + path
}

// Directory is the part of the tenant directory sign-in needs.
type Directory interface {
	GetSubdomainsByEmail(ctx context.Context, email string) ([]string, error)
	IsPrivilegedIdentity(ctx context.Context, email string) (bool, error)
}

// SignInTarget returns the URL a freshly signed-in caller should navigate
// to, or "" when the current host is already right. Privileged identities
// go to the team host regardless of tenant mappings; everyone else goes to
// their primary tenant. The target is a different origin, so it is handed
// back as data for the client to follow.
func SignInTarget(ctx context.Context, host HostInfo, scheme, email, teamSubdomain string, dir Directory) (string, error) {
	privileged, err := dir.IsPrivilegedIdentity(ctx, email)
	if err != nil {
		return "", err
	}
	if privileged {
		if host.Kind == HostTeam {
			return "", nil
		}
		return absoluteURL(scheme, host.HostFor(teamSubdomain)), nil
	}

	if host.Kind == HostTenant {
		return "", nil
	}
	subdomains, err := dir.GetSubdomainsByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if len(subdomains) == 0 {
		return "", nil
	}
	return absoluteURL(scheme, host.HostFor(subdomains[0])), nil
}

func absoluteURL(scheme, host string) string {
	if host == "" {
		return ""
	}
	if scheme == "" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: host, Path: "/"}).String()
}
