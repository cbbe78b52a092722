// Package auth verifies who is calling. Sign-in exchanges an identity
// provider JWT for a signed session cookie; every later request is
// identified by that cookie alone.
package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserKey is the context key for the verified user.
const UserKey contextKey = "user"

// Claims is the identity provider token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// User is a verified caller.
type User struct {
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Name    string `json:"name,omitempty"`
}

// UserFromClaims builds the session user from validated claims.
func UserFromClaims(c *Claims) *User {
	return &User{
		Email:   strings.ToLower(strings.TrimSpace(c.Email)),
		Subject: c.Subject,
		Name:    c.Name,
	}
}

// WithUser stores the verified user in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// GetUser retrieves the verified user from ctx.
func GetUser(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(UserKey).(*User)
	return u, ok && u != nil
}
