package repositories

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/models"
)

// directoryFile is the on-disk layout of tenants.yaml.
//
//	team:
//	  - ops@example.com
//	tenants:
//	  - subdomain: acme
//	    sheet_id: 1AbC...
//	    store_name: Acme Goods
//	    email: owner@acme.test
//	    members: [buyer@acme.test]
type directoryFile struct {
	Team    []string     `yaml:"team"`
	Tenants []fileTenant `yaml:"tenants"`
}

type fileTenant struct {
	models.Tenant `yaml:",inline"`
	Members       []string `yaml:"members"`
}

// fileTenantRepository serves the directory from a YAML file loaded once.
// An email's primary tenant is the first one listing it.
type fileTenantRepository struct {
	tenants []fileTenant
	team    map[string]bool
}

// LoadTenantFile reads a YAML tenant directory for local development.
func LoadTenantFile(path string) (TenantRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant file: %w", err)
	}
	return ParseTenantFile(data)
}

// ParseTenantFile builds a directory from YAML bytes.
func ParseTenantFile(data []byte) (TenantRepository, error) {
	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenant file: %w", err)
	}

	seen := make(map[string]bool, len(file.Tenants))
	for i := range file.Tenants {
		t := &file.Tenants[i]
		t.Subdomain = strings.ToLower(strings.TrimSpace(t.Subdomain))
		if t.Subdomain == "" {
			return nil, fmt.Errorf("tenant %d has no subdomain", i)
		}
		if seen[t.Subdomain] {
			return nil, fmt.Errorf("duplicate tenant subdomain %q", t.Subdomain)
		}
		seen[t.Subdomain] = true
	}

	team := make(map[string]bool, len(file.Team))
	for _, email := range file.Team {
		team[normalizeEmail(email)] = true
	}
	return &fileTenantRepository{tenants: file.Tenants, team: team}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *fileTenantRepository) GetBySubdomain(_ context.Context, subdomain string) (*models.Tenant, error) {
	subdomain = strings.ToLower(subdomain)
	for i := range r.tenants {
		if r.tenants[i].Subdomain == subdomain {
			t := r.tenants[i].Tenant
			return &t, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, "directory.GetBySubdomain",
		fmt.Sprintf("tenant %q not found", subdomain))
}

func (r *fileTenantRepository) GetSubdomainsByEmail(_ context.Context, email string) ([]string, error) {
	email = normalizeEmail(email)
	subdomains := []string{}
	if email == "" {
		return subdomains, nil
	}
	for _, t := range r.tenants {
		if normalizeEmail(t.Email) == email || containsEmail(t.Members, email) {
			subdomains = append(subdomains, t.Subdomain)
		}
	}
	return subdomains, nil
}

func containsEmail(list []string, email string) bool {
	for _, e := range list {
		if normalizeEmail(e) == email {
			return true
		}
	}
	return false
}

func (r *fileTenantRepository) IsPrivilegedIdentity(_ context.Context, email string) (bool, error) {
	return r.team[normalizeEmail(email)], nil
}

func (r *fileTenantRepository) List(_ context.Context) ([]*models.Tenant, error) {
	tenants := make([]*models.Tenant, len(r.tenants))
	for i := range r.tenants {
		t := r.tenants[i].Tenant
		tenants[i] = &t
	}
	return tenants, nil
}
