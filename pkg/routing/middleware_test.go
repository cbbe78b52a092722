package routing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/auth"
)

type countingVerifier struct {
	user  *auth.User
	err   error
	calls int
}

func (v *countingVerifier) CurrentUser(*http.Request) (*auth.User, error) {
	v.calls++
	return v.user, v.err
}

// recordingHandler captures what reached the application.
type recordingHandler struct {
	called bool
	path   string
	scope  Scope
	user   *auth.User
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.path = r.URL.Path
	h.scope, _ = GetScope(r.Context())
	h.user, _ = auth.GetUser(r.Context())
	w.WriteHeader(http.StatusOK)
}

func newTestGate(v auth.SessionVerifier, dir Directory) *Gate {
	return NewGate(testClassifier(false), GateConfig{}, v, dir, zap.NewNop())
}

func serve(g *Gate, next http.Handler, host, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, req)
	return rec
}

func TestGate_RewriteKeepsVisibleURL(t *testing.T) {
	verifier := &countingVerifier{user: &auth.User{Email: "owner@acme.test"}}
	next := &recordingHandler{}

	rec := serve(newTestGate(verifier, &fakeDirectory{}), next, "acme.sellercentry.com", "/reports?tab=open")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, next.called)
	assert.Equal(t, "/s/acme/reports", next.path)
	assert.True(t, next.scope.Rewritten)
	assert.Equal(t, "acme", next.scope.Tenant)
	require.NotNil(t, next.user)
	assert.Equal(t, "owner@acme.test", next.user.Email)
	assert.Equal(t, 1, verifier.calls)
}

func TestGate_UnauthenticatedRedirects(t *testing.T) {
	verifier := &countingVerifier{err: auth.ErrNoSession}
	next := &recordingHandler{}

	rec := serve(newTestGate(verifier, &fakeDirectory{}), next, "acme.sellercentry.com", "/reports")

	assert.False(t, next.called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=/reports", rec.Header().Get("Location"))
}

func TestGate_VerifierErrorFailsClosed(t *testing.T) {
	verifier := &countingVerifier{user: &auth.User{Email: "x@y.z"}, err: errors.New("upstream timeout")}
	next := &recordingHandler{}

	rec := serve(newTestGate(verifier, &fakeDirectory{}), next, "acme.sellercentry.com", "/reports")

	assert.False(t, next.called)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestGate_SkipsVerificationWhenUnneeded(t *testing.T) {
	verifier := &countingVerifier{user: &auth.User{Email: "x@y.z"}}
	g := newTestGate(verifier, &fakeDirectory{})

	for _, tc := range []struct{ host, target string }{
		{"sellercentry.com", "/pricing"},
		{"acme.sellercentry.com", "/api/violations"},
		{"acme.sellercentry.com", "/auth/callback"},
	} {
		next := &recordingHandler{}
		serve(g, next, tc.host, tc.target)
		assert.True(t, next.called, tc.target)
	}
	assert.Zero(t, verifier.calls)
}

func TestGate_APIExposesTenantScope(t *testing.T) {
	next := &recordingHandler{}
	serve(newTestGate(&countingVerifier{}, &fakeDirectory{}), next, "acme.sellercentry.com", "/api/violations")

	require.True(t, next.called)
	assert.Equal(t, "/api/violations", next.path)
	assert.Equal(t, "acme", next.scope.Tenant)
	assert.False(t, next.scope.Rewritten)
}

func TestGate_TeamHost(t *testing.T) {
	dir := &fakeDirectory{team: map[string]bool{"staff@x.test": true}}

	t.Run("non-privileged denied", func(t *testing.T) {
		next := &recordingHandler{}
		rec := serve(newTestGate(&countingVerifier{user: &auth.User{Email: "owner@acme.test"}}, dir), next,
			"team.sellercentry.com", "/clients")
		assert.False(t, next.called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "owner@acme.test")
	})

	t.Run("privileged rewritten", func(t *testing.T) {
		next := &recordingHandler{}
		rec := serve(newTestGate(&countingVerifier{user: &auth.User{Email: "staff@x.test"}}, dir), next,
			"team.sellercentry.com", "/clients")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/team/clients", next.path)
		assert.True(t, next.scope.Rewritten)
	})

	t.Run("directory failure denies", func(t *testing.T) {
		next := &recordingHandler{}
		rec := serve(newTestGate(&countingVerifier{user: &auth.User{Email: "staff@x.test"}}, &fakeDirectory{err: errors.New("down")}), next,
			"team.sellercentry.com", "/clients")
		assert.False(t, next.called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGate_WWWRedirect(t *testing.T) {
	next := &recordingHandler{}
	rec := serve(newTestGate(&countingVerifier{}, &fakeDirectory{}), next, "www.sellercentry.com", "/pricing?ref=ad")

	assert.False(t, next.called)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "http://sellercentry.com/pricing?ref=ad", rec.Header().Get("Location"))
}

func TestRequestScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "http", RequestScheme(req))

	req.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	assert.Equal(t, "https", RequestScheme(req))
}
