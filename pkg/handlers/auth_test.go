package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		token    string
		status   int
		redirect string
	}{
		{"tenant user on bare domain", "sellercentry.com", "valid:Owner@Acme.test", http.StatusOK, "http://acme.sellercentry.com/"},
		{"tenant user already home", "acme.sellercentry.com", "valid:owner@acme.test", http.StatusOK, ""},
		{"team user goes to team host", "acme.sellercentry.com", "valid:ops@sellercentry.com", http.StatusOK, "http://team.sellercentry.com/"},
		{"unmapped user stays", "sellercentry.com", "valid:stranger@example.com", http.StatusOK, ""},
		{"bad token", "sellercentry.com", "forged", http.StatusUnauthorized, ""},
		{"missing token", "sellercentry.com", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "http://"+tt.host+"/api/auth/signin", "", map[string]string{"token": tt.token})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Empty(t, env.sessions.signedIn)
				return
			}
			resp := decodeBody[SignInResponse](t, rec)
			assert.Equal(t, tt.redirect, resp.RedirectURL)
			assert.Equal(t, []string{resp.Email}, env.sessions.signedIn)
		})
	}
}

func TestAuthHandler_SignIn_SessionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.signInErr = errors.New("cookie too large")

	rec := env.do(t, http.MethodPost, "http://sellercentry.com/api/auth/signin", "", map[string]string{"token": "valid:owner@acme.test"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthHandler_SignOut(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "http://sellercentry.com/api/auth/signout", acmeOwner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.sessions.signedOut)
}

func TestAuthHandler_Me(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "http://sellercentry.com/api/auth/me", acmeOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[MeResponse](t, rec)
	assert.Equal(t, acmeOwner, me.Email)
	assert.False(t, me.Privileged)
	assert.Equal(t, []string{"acme"}, me.Tenants)

	rec = env.do(t, http.MethodGet, "http://sellercentry.com/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_SignIn_Audited(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "http://sellercentry.com/api/auth/signin", "", map[string]string{"token": "forged"})
	env.do(t, http.MethodPost, "http://sellercentry.com/api/auth/signin", "", map[string]string{"token": "valid:owner@acme.test"})

	entries := env.audit.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "sign_in_failure", entries[0].ContextMap()["event_type"])
	assert.Equal(t, "sign_in", entries[1].ContextMap()["event_type"])
	assert.Equal(t, "ow***@acme.test", entries[1].ContextMap()["user"])
}
