package models

import "time"

// Tenant is one customer account. The counters are snapshots maintained by
// the tenant directory and are not authoritative; live counts come from
// reading the tenant's sheet.
type Tenant struct {
	Subdomain          string    `json:"subdomain" yaml:"subdomain"`
	SheetID            string    `json:"sheet_id" yaml:"sheet_id"`
	StoreName          string    `json:"store_name" yaml:"store_name"`
	Email              string    `json:"email" yaml:"email"`
	TotalViolations    int       `json:"total_violations" yaml:"total_violations"`
	ActiveViolations   int       `json:"active_violations" yaml:"active_violations"`
	ResolvedViolations int       `json:"resolved_violations" yaml:"resolved_violations"`
	RecentViolations   int       `json:"recent_violations" yaml:"recent_violations"`
	AtRiskAmount       float64   `json:"at_risk_amount" yaml:"at_risk_amount"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" yaml:"updated_at"`
}

// ClientOverview summarizes one tenant for the team dashboard.
// Live is nil unless the detailed listing was requested.
type ClientOverview struct {
	Subdomain string       `json:"subdomain"`
	StoreName string       `json:"store_name"`
	Email     string       `json:"email"`
	SheetID   string       `json:"sheet_id"`
	Snapshot  TenantCounts `json:"snapshot"`
	Live      *LiveCounts  `json:"live,omitempty"`
}

// TenantCounts are the directory's denormalized counters.
type TenantCounts struct {
	Total        int     `json:"total"`
	Active       int     `json:"active"`
	Resolved     int     `json:"resolved"`
	Recent       int     `json:"recent"`
	AtRiskAmount float64 `json:"at_risk_amount"`
}

// LiveCounts are computed by reading the tenant's tables.
type LiveCounts struct {
	Active         int            `json:"active"`
	Resolved       int            `json:"resolved"`
	FlaggedLast7   int            `json:"flagged_last_7_days"`
	ResolvedLast30 int            `json:"resolved_last_30_days"`
	AtRiskAmount   float64        `json:"at_risk_amount"`
	ByStatus       map[Status]int `json:"by_status"`
	// MissingTables lists logical tables with no matching tab.
	MissingTables []string `json:"missing_tables,omitempty"`
}

// NewClientOverview builds the directory-only overview of t.
func NewClientOverview(t *Tenant) *ClientOverview {
	return &ClientOverview{
		Subdomain: t.Subdomain,
		StoreName: t.StoreName,
		Email:     t.Email,
		SheetID:   t.SheetID,
		Snapshot: TenantCounts{
			Total:        t.TotalViolations,
			Active:       t.ActiveViolations,
			Resolved:     t.ResolvedViolations,
			Recent:       t.RecentViolations,
			AtRiskAmount: t.AtRiskAmount,
		},
	}
}
