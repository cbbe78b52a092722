package handlers

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/routing"
)

// TenantAccess decides which tenants a signed-in user may read and write.
// Team identities may act on any tenant; everyone else only on the
// subdomains the directory maps to their email.
type TenantAccess struct {
	tenants repositories.TenantRepository
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewTenantAccess creates a TenantAccess over the tenant directory.
func NewTenantAccess(tenants repositories.TenantRepository, auditor *audit.SecurityAuditor, logger *zap.Logger) *TenantAccess {
	return &TenantAccess{tenants: tenants, auditor: auditor, logger: logger.Named("access")}
}

// IsPrivileged reports whether u is a team identity.
func (a *TenantAccess) IsPrivileged(ctx context.Context, u *auth.User) (bool, error) {
	if u == nil {
		return false, nil
	}
	return a.tenants.IsPrivilegedIdentity(ctx, u.Email)
}

// Authorize returns the tenant named by requested if u may access it. On a
// tenant host an empty request means the host's tenant, and naming any
// other tenant is forbidden. Membership is checked before the tenant is
// loaded so callers cannot probe which subdomains exist.
func (a *TenantAccess) Authorize(ctx context.Context, u *auth.User, requested string) (*models.Tenant, error) {
	const op = "access.Authorize"

	if u == nil {
		return nil, apperrors.New(apperrors.KindUnauthorized, op, "authentication required")
	}

	requested = strings.ToLower(strings.TrimSpace(requested))
	if scope, ok := routing.GetScope(ctx); ok && scope.Tenant != "" {
		if requested == "" {
			requested = scope.Tenant
		} else if requested != scope.Tenant {
			a.auditor.LogAccessDenied(ctx, u.Email, requested, "tenant does not match host")
			return nil, apperrors.New(apperrors.KindForbidden, op, "tenant does not match host")
		}
	}
	if requested == "" {
		return nil, apperrors.New(apperrors.KindInvalid, op, "tenant is required")
	}

	privileged, err := a.IsPrivileged(ctx, u)
	if err != nil {
		return nil, err
	}
	if !privileged {
		subdomains, err := a.tenants.GetSubdomainsByEmail(ctx, u.Email)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(subdomains, requested) {
			a.auditor.LogAccessDenied(ctx, u.Email, requested, "not a member")
			return nil, apperrors.New(apperrors.KindForbidden, op, "no access to this tenant")
		}
	}

	tenant, err := a.tenants.GetBySubdomain(ctx, requested)
	if err != nil {
		return nil, err
	}
	if tenant.SheetID == "" {
		return nil, apperrors.New(apperrors.KindNotFound, op, "tenant has no sheet configured")
	}
	return tenant, nil
}
