package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates an identity provider token.
type TokenValidator interface {
	// ValidateToken returns the claims of a valid token, or an error if the
	// token is malformed, expired, badly signed or from an unknown issuer.
	ValidateToken(tokenString string) (*Claims, error)
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for local development only.
	EnableVerification bool
	// JWKSEndpoints maps issuer URLs to their JWKS endpoint URLs.
	JWKSEndpoints map[string]string
	// StaticJWKS maps issuers to an inline JWK Set, for providers whose keys
	// are pinned in configuration rather than fetched.
	StaticJWKS map[string]json.RawMessage
	// Audience, when set, must appear in the token's aud claim.
	Audience string
}

// JWKSClient validates tokens against per-issuer key sets. Only tokens
// from configured issuers are accepted.
type JWKSClient struct {
	endpoints map[string]keyfunc.Keyfunc
	config    *JWKSConfig
}

// NewJWKSClient creates a JWKS client, fetching every configured endpoint
// when verification is enabled.
func NewJWKSClient(ctx context.Context, config *JWKSConfig) (*JWKSClient, error) {
	client := &JWKSClient{
		endpoints: make(map[string]keyfunc.Keyfunc),
		config:    config,
	}

	if !config.EnableVerification {
		return client, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}
	for issuer, raw := range config.StaticJWKS {
		jwks, err := keyfunc.NewJWKSetJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to load static JWKS for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}
	if len(client.endpoints) == 0 {
		return nil, errors.New("token verification enabled but no issuers configured")
	}

	return client, nil
}

// ValidateToken validates a token and returns its claims. With
// verification disabled the token is only parsed.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if !c.config.EnableVerification {
		return c.parseUnverifiedToken(tokenString)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384"}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}

		jwks, exists := c.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
		}
		return jwks.Keyfunc(token)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

func (c *JWKSClient) parseUnverifiedToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// Close is a no-op; keyfunc v3 refreshes in goroutines tied to the
// construction context.
func (c *JWKSClient) Close() {}

var _ TokenValidator = (*JWKSClient)(nil)
