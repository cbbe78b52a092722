package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sellercentry/account-health/pkg/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestFilterViolations(t *testing.T) {
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	vs := []*models.Violation{
		{ID: "A1", Reason: "Counterfeit complaint", FlaggedDate: date(2024, 3, 14), Status: models.StatusWorking, ProductRef: "B001"},
		{ID: "A2", Reason: "Late shipment", FlaggedDate: date(2024, 3, 1), Status: models.StatusAssessing, Title: "Blue Kettle"},
		{ID: "A3", Reason: "Pricing", FlaggedDate: nil, Status: models.StatusWorking, Notes: "awaiting KETTLE invoice"},
		{ID: "A4", Reason: "Safety", FlaggedDate: date(2024, 3, 8), Status: models.StatusSubmitted},
	}

	ids := func(out []*models.Violation) []string {
		res := []string{}
		for _, v := range out {
			res = append(res, v.ID)
		}
		return res
	}

	tests := []struct {
		name   string
		filter ViolationFilter
		want   []string
	}{
		{"zero filter keeps all", ViolationFilter{}, []string{"A1", "A2", "A3", "A4"}},
		{"seven day window includes boundary", ViolationFilter{Days: 7, Now: now}, []string{"A1", "A4"}},
		{"status set", ViolationFilter{Statuses: []models.Status{models.StatusWorking}}, []string{"A1", "A3"}},
		{"query is case-insensitive across fields", ViolationFilter{Query: "kettle"}, []string{"A2", "A3"}},
		{"query matches ASIN", ViolationFilter{Query: "b001"}, []string{"A1"}},
		{"criteria combine", ViolationFilter{Days: 30, Now: now, Statuses: []models.Status{models.StatusAssessing, models.StatusSubmitted}}, []string{"A2", "A4"}},
		{"no match", ViolationFilter{Query: "nothing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterViolations(vs, tt.filter)))
		})
	}
}
