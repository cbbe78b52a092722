package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/models"
)

// DateLayout is the literal form dates are written in.
const DateLayout = "01/02/2006"

// dateLayouts are accepted when reading; sheets edited by hand drift.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	time.RFC3339,
}

var currencyPrinter = message.NewPrinter(language.AmericanEnglish)

// ParseDate parses a date cell. Empty cells and unknown layouts yield nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseCurrency parses "$1,234.56", "1234.5" or "(12.00)". An empty cell is zero.
func ParseCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "", "USD", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid currency %q", raw)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// FormatCurrency renders v as "$1,234.56".
func FormatCurrency(v float64) string {
	return currencyPrinter.Sprintf("$%.2f", v)
}

// ParseTags splits a comma-separated tag cell, dropping blanks.
func ParseTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Decode maps a raw row to a violation. Missing trailing cells read as
// empty; unparseable dates and amounts read as absent/zero rather than
// failing the whole listing.
func (s *Schema) Decode(row []string) *models.Violation {
	v := &models.Violation{
		ID:          strings.TrimSpace(s.Cell(row, models.FieldID)),
		Reason:      s.Cell(row, models.FieldReason),
		FlaggedDate: ParseDate(s.Cell(row, models.FieldFlaggedDate)),
		ProductRef:  strings.TrimSpace(s.Cell(row, models.FieldProductRef)),
		Title:       s.Cell(row, models.FieldTitle),
		ActionTaken: s.Cell(row, models.FieldActionTaken),
		NextSteps:   s.Cell(row, models.FieldNextSteps),
		Options:     s.Cell(row, models.FieldOptions),
		Notes:       s.Cell(row, models.FieldNotes),
		Table:       s.name,
	}

	if amount, err := ParseCurrency(s.Cell(row, models.FieldAtRiskAmount)); err == nil {
		v.AtRiskAmount = amount
	}
	if impact, ok := models.ParseImpact(s.Cell(row, models.FieldImpact)); ok {
		v.Impact = impact
	} else {
		v.Impact = models.Impact(strings.TrimSpace(s.Cell(row, models.FieldImpact)))
	}
	if st, ok := models.ParseStatus(s.Cell(row, models.FieldStatus)); ok {
		v.Status = st
	} else {
		v.Status = models.Status(strings.TrimSpace(s.Cell(row, models.FieldStatus)))
	}
	if s.Has(models.FieldResolvedDate) {
		v.ResolvedDate = ParseDate(s.Cell(row, models.FieldResolvedDate))
	}
	if s.Has(models.FieldDocumentsNeeded) {
		v.DocumentsNeeded = ParseTags(s.Cell(row, models.FieldDocumentsNeeded))
	}
	return v
}

// Encode validates a user-supplied value for field f and returns the cell
// literal to write.
func (s *Schema) Encode(f models.Field, value string) (string, error) {
	const op = "sheets.Encode"

	i, ok := s.index[f]
	if !ok {
		return "", apperrors.New(apperrors.KindInvalid, op,
			fmt.Sprintf("field %q is not a column of the %s table", f, s.name))
	}
	if f == models.FieldID {
		return "", apperrors.New(apperrors.KindInvalid, op, "field \"id\" cannot be updated")
	}

	value = strings.TrimSpace(value)
	switch s.columns[i].Kind {
	case KindDate:
		if value == "" {
			return "", nil
		}
		d := ParseDate(value)
		if d == nil {
			return "", apperrors.New(apperrors.KindInvalid, op, fmt.Sprintf("field %q: invalid date %q", f, value))
		}
		return FormatDate(*d), nil
	case KindCurrency:
		amount, err := ParseCurrency(value)
		if err != nil {
			return "", apperrors.New(apperrors.KindInvalid, op, fmt.Sprintf("field %q: %v", f, err))
		}
		if amount < 0 {
			return "", apperrors.New(apperrors.KindInvalid, op, fmt.Sprintf("field %q: amount must not be negative", f))
		}
		return FormatCurrency(amount), nil
	case KindImpact:
		impact, ok := models.ParseImpact(value)
		if !ok {
			return "", apperrors.New(apperrors.KindInvalid, op, fmt.Sprintf("field %q: unknown impact %q", f, value))
		}
		return string(impact), nil
	case KindStatus:
		st, ok := models.ParseStatus(value)
		if !ok {
			return "", apperrors.New(apperrors.KindInvalid, op, fmt.Sprintf("field %q: unknown status %q", f, value))
		}
		return string(st), nil
	case KindTags:
		return strings.Join(ParseTags(value), ", "), nil
	default:
		return value, nil
	}
}

// EncodeUpdates validates every assignment and returns the cells to write
// keyed by column.
func (s *Schema) EncodeUpdates(fields models.FieldUpdates) (map[int]string, error) {
	if len(fields) == 0 {
		return nil, apperrors.New(apperrors.KindInvalid, "sheets.EncodeUpdates", "no fields to update")
	}
	cells := make(map[int]string, len(fields))
	for f, value := range fields {
		literal, err := s.Encode(f, value)
		if err != nil {
			return nil, err
		}
		cells[s.index[f]] = literal
	}
	return cells, nil
}
