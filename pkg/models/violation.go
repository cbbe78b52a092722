// Package models contains domain types for the account-health engine.
package models

import (
	"strings"
	"time"
)

// Field names a violation attribute. Field values double as the JSON keys
// accepted in update payloads.
type Field string

const (
	FieldID              Field = "id"
	FieldReason          Field = "reason"
	FieldFlaggedDate     Field = "flagged_date"
	FieldProductRef      Field = "product_ref"
	FieldTitle           Field = "title"
	FieldAtRiskAmount    Field = "at_risk_amount"
	FieldActionTaken     Field = "action_taken"
	FieldImpact          Field = "impact"
	FieldNextSteps       Field = "next_steps"
	FieldOptions         Field = "options"
	FieldStatus          Field = "status"
	FieldNotes           Field = "notes"
	FieldResolvedDate    Field = "resolved_date"
	FieldDocumentsNeeded Field = "documents_needed"
)

// FieldUpdates is a sparse set of field assignments for one violation.
// Values are raw user input; the sheet schema validates and formats them.
type FieldUpdates map[Field]string

// Status is the workflow state of a violation.
type Status string

const (
	StatusAssessing       Status = "Assessing"
	StatusWorking         Status = "Working"
	StatusWaitingOnClient Status = "Waiting on Client"
	StatusSubmitted       Status = "Submitted"
	StatusReviewResolved  Status = "Review Resolved"
	StatusDenied          Status = "Denied"
	StatusIgnored         Status = "Ignored"
	StatusResolved        Status = "Resolved"
	StatusAcknowledged    Status = "Acknowledged"
)

// AllStatuses lists every known status in display order.
var AllStatuses = []Status{
	StatusAssessing,
	StatusWorking,
	StatusWaitingOnClient,
	StatusSubmitted,
	StatusReviewResolved,
	StatusDenied,
	StatusIgnored,
	StatusResolved,
	StatusAcknowledged,
}

// ParseStatus matches s against the known statuses ignoring case and
// surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// IsActive reports whether the status belongs on the active table.
func (s Status) IsActive() bool {
	switch s {
	case StatusAssessing, StatusWorking, StatusWaitingOnClient, StatusSubmitted, StatusReviewResolved:
		return true
	}
	return false
}

// IsResolved reports whether the status belongs on the resolved table.
func (s Status) IsResolved() bool {
	switch s {
	case StatusResolved, StatusAcknowledged, StatusDenied, StatusIgnored:
		return true
	}
	return false
}

// Impact is the account-health impact level of a violation.
type Impact string

const (
	ImpactHigh     Impact = "High"
	ImpactMedium   Impact = "Medium"
	ImpactLow      Impact = "Low"
	ImpactNoImpact Impact = "No Impact"
)

// ParseImpact matches s against the known impact levels. "None" and
// "NoImpact" are accepted as spellings of No Impact.
func ParseImpact(s string) (Impact, bool) {
	norm := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch norm {
	case "high":
		return ImpactHigh, true
	case "medium":
		return ImpactMedium, true
	case "low":
		return ImpactLow, true
	case "noimpact", "none":
		return ImpactNoImpact, true
	}
	return "", false
}

// Violation is one tracked compliance issue read from a tenant's sheet.
type Violation struct {
	ID              string     `json:"id"`
	Reason          string     `json:"reason"`
	FlaggedDate     *time.Time `json:"flagged_date,omitempty"`
	ProductRef      string     `json:"product_ref"`
	Title           string     `json:"title"`
	AtRiskAmount    float64    `json:"at_risk_amount"`
	ActionTaken     string     `json:"action_taken"`
	Impact          Impact     `json:"impact"`
	NextSteps       string     `json:"next_steps"`
	Options         string     `json:"options"`
	Status          Status     `json:"status"`
	Notes           string     `json:"notes"`
	ResolvedDate    *time.Time `json:"resolved_date,omitempty"`
	DocumentsNeeded []string   `json:"documents_needed,omitempty"`

	// Table is the logical table the record was read from.
	Table string `json:"table"`
	// Row is the 1-based physical row index at read time. Rows shift on
	// delete, so this is only a hint.
	Row int `json:"row"`
}
