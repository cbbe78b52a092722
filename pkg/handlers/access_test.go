package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/routing"
)

// brokenDirectory fails every lookup.
type brokenDirectory struct{ repositories.TenantRepository }

func (brokenDirectory) IsPrivilegedIdentity(context.Context, string) (bool, error) {
	return false, errors.New("directory unavailable")
}

func (brokenDirectory) GetBySubdomain(context.Context, string) (*models.Tenant, error) {
	return nil, errors.New("directory unavailable")
}

func newAccess(t *testing.T) *TenantAccess {
	t.Helper()
	tenants, err := repositories.ParseTenantFile([]byte(testDirectory))
	require.NoError(t, err)
	return NewTenantAccess(tenants, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
}

func TestTenantAccess_Authorize(t *testing.T) {
	access := newAccess(t)
	owner := &auth.User{Email: acmeOwner}
	ctx := context.Background()

	tenant, err := access.Authorize(ctx, owner, " ACME ")
	require.NoError(t, err)
	assert.Equal(t, "sheet-acme", tenant.SheetID)

	_, err = access.Authorize(ctx, nil, "acme")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = access.Authorize(ctx, owner, "beta")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = access.Authorize(ctx, owner, "nobody")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "unknown tenants look the same as foreign ones")

	_, err = access.Authorize(ctx, owner, "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))
}

func TestTenantAccess_Authorize_HostScope(t *testing.T) {
	access := newAccess(t)
	team := &auth.User{Email: teamUser}
	ctx := routing.WithScope(context.Background(), routing.Scope{Tenant: "beta"})

	tenant, err := access.Authorize(ctx, team, "")
	require.NoError(t, err)
	assert.Equal(t, "beta", tenant.Subdomain)

	_, err = access.Authorize(ctx, team, "acme")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestTenantAccess_FailsClosed(t *testing.T) {
	access := NewTenantAccess(brokenDirectory{}, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())

	_, err := access.Authorize(context.Background(), &auth.User{Email: teamUser}, "acme")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
}
