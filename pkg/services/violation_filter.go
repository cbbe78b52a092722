package services

import (
	"strings"
	"time"

	"github.com/sellercentry/account-health/pkg/models"
)

// ViolationFilter narrows an already fetched listing. Zero values disable
// the corresponding criterion.
type ViolationFilter struct {
	// Days keeps records flagged within the last Days days, counted from Now.
	// Records without a flagged date are dropped when Days is set.
	Days int
	Now  time.Time
	// Statuses keeps records whose status is in the set.
	Statuses []models.Status
	// Query is a case-insensitive substring matched against the id, reason,
	// ASIN, title and notes.
	Query string
}

// IsZero reports whether f keeps every record.
func (f ViolationFilter) IsZero() bool {
	return f.Days <= 0 && len(f.Statuses) == 0 && strings.TrimSpace(f.Query) == ""
}

// FilterViolations returns the records of vs matching f, preserving order.
func FilterViolations(vs []*models.Violation, f ViolationFilter) []*models.Violation {
	if f.IsZero() {
		return vs
	}

	var cutoff time.Time
	if f.Days > 0 {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		now = now.UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		cutoff = today.AddDate(0, 0, -f.Days)
	}

	statuses := make(map[models.Status]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses[s] = true
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]*models.Violation, 0, len(vs))
	for _, v := range vs {
		if f.Days > 0 && (v.FlaggedDate == nil || v.FlaggedDate.Before(cutoff)) {
			continue
		}
		if len(statuses) > 0 && !statuses[v.Status] {
			continue
		}
		if query != "" && !matchesQuery(v, query) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matchesQuery(v *models.Violation, query string) bool {
	for _, field := range []string{v.ID, v.Reason, v.ProductRef, v.Title, v.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
