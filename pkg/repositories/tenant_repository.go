package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/database"
	"github.com/sellercentry/account-health/pkg/models"
)

// TenantRepository is the read-only tenant directory.
type TenantRepository interface {
	// GetBySubdomain returns apperrors.ErrNotFound for an unknown subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	// GetSubdomainsByEmail returns every subdomain the email may access,
	// primary first. An unknown email yields an empty slice.
	GetSubdomainsByEmail(ctx context.Context, email string) ([]string, error)
	IsPrivilegedIdentity(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// tenantRepository implements TenantRepository using PostgreSQL.
type tenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a PostgreSQL-backed tenant directory.
func NewTenantRepository(db *database.DB) TenantRepository {
	return &tenantRepository{db: db}
}

const tenantColumns = `subdomain, sheet_id, store_name, email,
	total_violations, active_violations, resolved_violations, recent_violations,
	at_risk_amount::float8, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.Subdomain,
		&t.SheetID,
		&t.StoreName,
		&t.Email,
		&t.TotalViolations,
		&t.ActiveViolations,
		&t.ResolvedViolations,
		&t.RecentViolations,
		&t.AtRiskAmount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1`

	tenant, err := scanTenant(r.db.QueryRow(ctx, query, strings.ToLower(subdomain)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "directory.GetBySubdomain",
				fmt.Sprintf("tenant %q not found", subdomain))
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

func (r *tenantRepository) GetSubdomainsByEmail(ctx context.Context, email string) ([]string, error) {
	query := `
		SELECT subdomain
		FROM tenant_accounts
		WHERE lower(email) = lower($1)
		ORDER BY position, created_at, subdomain`

	rows, err := r.db.Query(ctx, query, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to query subdomains: %w", err)
	}
	subdomains, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan subdomains: %w", err)
	}
	if subdomains == nil {
		subdomains = []string{}
	}
	return subdomains, nil
}

func (r *tenantRepository) IsPrivilegedIdentity(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return exists, nil
}

func (r *tenantRepository) List(ctx context.Context) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY subdomain`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*models.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return tenants, nil
}
