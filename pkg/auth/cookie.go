package auth

import (
	"net/url"
	"strings"
)

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure restricts the cookie to HTTPS.
	Secure bool
	// Domain scopes the cookie, e.g. ".sellercentry.com" so a session
	// started on the bare domain is visible on tenant subdomains.
	Domain string
}

// DeriveCookieSettings determines cookie settings from the public base URL:
//   - http://localhost:8080 → Secure: false, Domain: ""
//   - https://sellercentry.com → Secure: true, Domain: ".sellercentry.com"
//   - https://acme.sellercentry.com → Secure: true, Domain: ".sellercentry.com"
//   - https://health.example.org (not a root domain) → Secure: true, Domain: ""
//
// A non-empty configCookieDomain overrides the derived domain.
func DeriveCookieSettings(baseURL, configCookieDomain string, rootDomains []string) CookieSettings {
	if configCookieDomain != "" {
		return CookieSettings{
			Secure: isHTTPS(baseURL),
			Domain: configCookieDomain,
		}
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return CookieSettings{Secure: true}
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	settings := CookieSettings{Secure: parsedURL.Scheme != "http"}

	if hostname == "localhost" || hostname == "127.0.0.1" || strings.HasSuffix(hostname, ".localhost") {
		return settings
	}
	for _, root := range rootDomains {
		root = strings.ToLower(strings.TrimPrefix(root, "."))
		if hostname == root || strings.HasSuffix(hostname, "."+root) {
			settings.Domain = "." + root
			break
		}
	}
	return settings
}

// isHTTPS reports whether baseURL is HTTPS; empty or invalid URLs count
// as HTTPS.
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return true
	}
	return parsedURL.Scheme != "http"
}
