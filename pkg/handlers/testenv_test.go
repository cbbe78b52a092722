package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/retry"
	"github.com/sellercentry/account-health/pkg/routing"
	"github.com/sellercentry/account-health/pkg/services"
	"github.com/sellercentry/account-health/pkg/sheets"
)

const testDirectory = `
team:
  - ops@sellercentry.com
tenants:
  - subdomain: acme
    sheet_id: sheet-acme
    store_name: Acme Goods
    email: owner@acme.test
  - subdomain: beta
    sheet_id: sheet-beta
    store_name: Beta Brands
    email: owner@beta.test
  - subdomain: pending
    email: owner@pending.test
`

const (
	acmeOwner = "owner@acme.test"
	teamUser  = "ops@sellercentry.com"
	testUser  = "X-Test-User"
)

var handlerNow = time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)

func activeRow(id, flagged, status string) []string {
	return []string{
		id, "Suspected IP infringement", flagged, "B00TEST" + id, "Widget " + id,
		"$1,250.00", "Submitted appeal", "High", "Wait for review", "Appeal", status,
		"note " + id, "Invoice, LOA",
	}
}

func resolvedRow(id, flagged, status, resolved string) []string {
	return []string{
		id, "Listing policy", flagged, "B00OLD" + id, "Gadget " + id,
		"$10.00", "Edited listing", "Low", "", "", status, "", resolved,
	}
}

func failOn(op sheets.Op, err error) sheets.FaultFunc {
	return func(got sheets.Op, _, _ string) error {
		if got == op {
			return err
		}
		return nil
	}
}

// fakeSessions reads the caller from a test header and records cookie writes.
type fakeSessions struct {
	signedIn  []string
	signedOut int
	signInErr error
}

func (f *fakeSessions) CurrentUser(r *http.Request) (*auth.User, error) {
	email := r.Header.Get(testUser)
	if email == "" {
		return nil, auth.ErrNoSession
	}
	return &auth.User{Email: email}, nil
}

func (f *fakeSessions) SignIn(w http.ResponseWriter, r *http.Request, u *auth.User) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	f.signedIn = append(f.signedIn, u.Email)
	return nil
}

func (f *fakeSessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	f.signedOut++
	return nil
}

// fakeValidator accepts "valid:<email>" tokens.
type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*auth.Claims, error) {
	email, ok := strings.CutPrefix(token, "valid:")
	if !ok {
		return nil, errors.New("bad signature")
	}
	return &auth.Claims{Email: email}, nil
}

func (fakeValidator) Close() {}

type testEnv struct {
	client   *sheets.MemoryClient
	sessions *fakeSessions
	gate     *routing.Gate
	mux      *http.ServeMux
	handler  http.Handler
	audit    *observer.ObservedLogs
}

// newTestEnv wires the full HTTP stack over an in-memory sheet backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	client := sheets.NewMemoryClient()
	client.AddTab("sheet-acme", "Active", sheets.ActiveSchema.Header(),
		activeRow("V1", "03/10/2024", "Working"),
		activeRow("V2", "02/01/2024", "Assessing"),
	)
	client.AddTab("sheet-acme", "Resolved Violations", sheets.ResolvedSchema.Header(),
		resolvedRow("R1", "01/05/2024", "Resolved", "01/20/2024"),
	)
	client.AddTab("sheet-beta", "Active Violations", sheets.ActiveSchema.Header())

	tenants, err := repositories.ParseTenantFile([]byte(testDirectory))
	require.NoError(t, err)

	store := services.NewSheetStore(client, tenants, services.SheetStoreConfig{
		Retry: &retry.Config{MaxRetries: 0},
		Now:   func() time.Time { return handlerNow },
	}, logger)
	batcher := services.NewBatchUpdater(services.BatchConfig{MaxItems: 5, ChunkSize: 2}, logger)
	auditCore, auditLogs := observer.New(zapcore.InfoLevel)
	auditor := audit.NewSecurityAuditor(zap.New(auditCore))
	access := NewTenantAccess(tenants, auditor, logger)

	sessions := &fakeSessions{}
	authService := auth.NewAuthService(fakeValidator{}, sessions, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	classifier := routing.NewClassifier(routing.ClassifierConfig{
		RootDomains:   []string{"sellercentry.com"},
		TeamSubdomain: "team",
	})
	gate := routing.NewGate(classifier, routing.DefaultGateConfig(), sessions, tenants, logger)

	violations := NewViolationsHandler(store, batcher, access, auditor, logger)
	violations.now = func() time.Time { return handlerNow }
	clients := NewClientsHandler(store, access, logger)

	mux := http.NewServeMux()
	violations.RegisterRoutes(mux, authMiddleware)
	clients.RegisterRoutes(mux, authMiddleware)
	NewAuthHandler(authService, sessions, gate, tenants, classifier.TeamSubdomain(), auditor, logger).RegisterRoutes(mux, authMiddleware)
	NewPagesHandler(clients, access, logger).RegisterRoutes(mux, gate.Config())
	NewHealthHandler("test", "test", nil, logger).RegisterRoutes(mux)

	return &testEnv{
		client:   client,
		sessions: sessions,
		gate:     gate,
		mux:      mux,
		handler:  gate.Middleware(mux),
		audit:    auditLogs,
	}
}

// do sends a request through the gate as user (empty for anonymous).
func (e *testEnv) do(t *testing.T, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != "" {
		req.Header.Set(testUser, user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
