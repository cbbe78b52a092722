// Package routing maps an inbound request to a tenant scope by host name and
// decides whether it passes through, is redirected, is rewritten into a
// tenant namespace, or is denied. Decisions are pure functions of their
// inputs; only the middleware touches the request.
package routing

import (
	"net"
	"regexp"
	"strings"
)

// HostKind classifies a request host.
type HostKind int

const (
	// HostGeneric has no tenant: the bare platform domain or plain localhost.
	HostGeneric HostKind = iota
	// HostTenant carries a tenant subdomain.
	HostTenant
	// HostTeam is the reserved subdomain for privileged staff.
	HostTeam
	// HostWWW is the www alias of a root domain.
	HostWWW
	// HostUnrecognized matched no known convention.
	HostUnrecognized
)

func (k HostKind) String() string {
	switch k {
	case HostGeneric:
		return "generic"
	case HostTenant:
		return "tenant"
	case HostTeam:
		return "team"
	case HostWWW:
		return "www"
	default:
		return "unrecognized"
	}
}

// HostInfo is the classification of one host.
type HostInfo struct {
	Kind   HostKind
	Tenant string
	// RootDomain is what tenant labels are prefixed to: a root domain,
	// "localhost", or for previews the platform domain.
	RootDomain string
	Port       string
	// Branch is set for preview hosts (tenant---branch.<platform>).
	Branch string
}

// HostFor returns the host serving subdomain under the same root, port and
// preview branch as h. It is empty when h has no usable root.
func (h HostInfo) HostFor(subdomain string) string {
	if h.RootDomain == "" || h.Kind == HostUnrecognized {
		return ""
	}
	label := subdomain
	if h.Branch != "" {
		label = subdomain + "---" + h.Branch
	}
	host := label + "." + h.RootDomain
	if h.Port != "" {
		host = net.JoinHostPort(host, h.Port)
	}
	return host
}

// ClassifierConfig lists the host conventions in effect.
type ClassifierConfig struct {
	RootDomains      []string
	TeamSubdomain    string
	PreviewPlatforms []string
	// AllowDevOverride honours the ?tenant= query parameter. Local only.
	AllowDevOverride bool
}

// Classifier turns host names into HostInfo.
type Classifier struct {
	config ClassifierConfig
}

// NewClassifier creates a Classifier. Domains are normalized to lower case.
func NewClassifier(config ClassifierConfig) *Classifier {
	roots := make([]string, 0, len(config.RootDomains))
	for _, r := range config.RootDomains {
		if r = normalizeDomain(r); r != "" {
			roots = append(roots, r)
		}
	}
	platforms := make([]string, 0, len(config.PreviewPlatforms))
	for _, p := range config.PreviewPlatforms {
		if p = normalizeDomain(p); p != "" {
			platforms = append(platforms, p)
		}
	}
	config.RootDomains = roots
	config.PreviewPlatforms = platforms
	if config.TeamSubdomain == "" {
		config.TeamSubdomain = "team"
	}
	return &Classifier{config: config}
}

func normalizeDomain(d string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSubdomain reports whether s is usable as a tenant label.
func ValidSubdomain(s string) bool {
	return subdomainPattern.MatchString(s) && !strings.Contains(s, "---")
}

// Classify classifies host. devOverride is the value of the tenant query
// parameter and is ignored unless the override is enabled. Checks run in
// order: override, root domains, *.localhost, preview naming.
func (c *Classifier) Classify(host, devOverride string) HostInfo {
	hostname, port := splitHost(host)

	if c.config.AllowDevOverride {
		if o := strings.ToLower(strings.TrimSpace(devOverride)); ValidSubdomain(o) {
			return c.labelled(o, HostInfo{RootDomain: hostname, Port: port})
		}
	}

	for _, root := range c.config.RootDomains {
		if hostname == root {
			return HostInfo{Kind: HostGeneric, RootDomain: root, Port: port}
		}
		if sub, ok := strings.CutSuffix(hostname, "."+root); ok {
			base := HostInfo{RootDomain: root, Port: port}
			if sub == "www" {
				base.Kind = HostWWW
				return base
			}
			return c.labelled(sub, base)
		}
	}

	if hostname == "localhost" {
		return HostInfo{Kind: HostGeneric, RootDomain: "localhost", Port: port}
	}
	if sub, ok := strings.CutSuffix(hostname, ".localhost"); ok {
		return c.labelled(sub, HostInfo{RootDomain: "localhost", Port: port})
	}

	for _, platform := range c.config.PreviewPlatforms {
		label, ok := strings.CutSuffix(hostname, "."+platform)
		if !ok || strings.Contains(label, ".") {
			continue
		}
		tenant, branch, found := strings.Cut(label, "---")
		if !found {
			return HostInfo{Kind: HostGeneric, RootDomain: platform, Port: port, Branch: label}
		}
		return c.labelled(tenant, HostInfo{RootDomain: platform, Port: port, Branch: branch})
	}

	return HostInfo{Kind: HostUnrecognized, Port: port}
}

// labelled completes base for a single subdomain label.
func (c *Classifier) labelled(sub string, base HostInfo) HostInfo {
	switch {
	case sub == c.config.TeamSubdomain:
		base.Kind = HostTeam
	case ValidSubdomain(sub):
		base.Kind = HostTenant
		base.Tenant = sub
	default:
		base.Kind = HostUnrecognized
	}
	return base
}

// TeamSubdomain returns the reserved staff subdomain.
func (c *Classifier) TeamSubdomain() string {
	return c.config.TeamSubdomain
}

func splitHost(host string) (string, string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, p, err := net.SplitHostPort(host); err == nil {
		return strings.TrimSuffix(h, "."), p
	}
	return strings.TrimSuffix(host, "."), ""
}
