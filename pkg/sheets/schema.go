package sheets

import (
	"github.com/sellercentry/account-health/pkg/models"
)

// ColumnKind selects how a column's cells are parsed and formatted.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate
	KindCurrency
	KindImpact
	KindStatus
	KindTags
)

// Column describes one physical column of a logical table.
type Column struct {
	Field  models.Field
	Header string
	Kind   ColumnKind
}

// Schema is the ordered column layout of one logical table. It is the only
// place that knows which field lives in which column.
type Schema struct {
	name    string
	columns []Column
	index   map[models.Field]int
}

// NewSchema builds a schema from columns in physical order.
func NewSchema(name string, columns ...Column) *Schema {
	s := &Schema{
		name:    name,
		columns: columns,
		index:   make(map[models.Field]int, len(columns)),
	}
	for i, c := range columns {
		s.index[c.Field] = i
	}
	return s
}

// commonColumns are shared by the active and resolved tables (A through L).
var commonColumns = []Column{
	{Field: models.FieldID, Header: "Violation ID", Kind: KindText},
	{Field: models.FieldReason, Header: "Reason", Kind: KindText},
	{Field: models.FieldFlaggedDate, Header: "Date Flagged", Kind: KindDate},
	{Field: models.FieldProductRef, Header: "ASIN", Kind: KindText},
	{Field: models.FieldTitle, Header: "Product Title", Kind: KindText},
	{Field: models.FieldAtRiskAmount, Header: "At Risk Sales", Kind: KindCurrency},
	{Field: models.FieldActionTaken, Header: "Action Taken", Kind: KindText},
	{Field: models.FieldImpact, Header: "AHR Impact", Kind: KindImpact},
	{Field: models.FieldNextSteps, Header: "Next Steps", Kind: KindText},
	{Field: models.FieldOptions, Header: "Options", Kind: KindText},
	{Field: models.FieldStatus, Header: "Status", Kind: KindStatus},
	{Field: models.FieldNotes, Header: "Notes", Kind: KindText},
}

func withTrailing(extra Column) []Column {
	cols := make([]Column, 0, len(commonColumns)+1)
	cols = append(cols, commonColumns...)
	return append(cols, extra)
}

var (
	// ActiveSchema carries the documents-needed tags in column M.
	ActiveSchema = NewSchema("active", withTrailing(Column{Field: models.FieldDocumentsNeeded, Header: "Docs Needed", Kind: KindTags})...)
	// ResolvedSchema carries the resolved date in column M.
	ResolvedSchema = NewSchema("resolved", withTrailing(Column{Field: models.FieldResolvedDate, Header: "Date Resolved", Kind: KindDate})...)
)

// Name returns the logical table key the schema belongs to.
func (s *Schema) Name() string { return s.name }

// Width is the number of columns.
func (s *Schema) Width() int { return len(s.columns) }

// Columns returns the columns in physical order.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Header returns the canonical header row.
func (s *Schema) Header() []string {
	h := make([]string, len(s.columns))
	for i, c := range s.columns {
		h[i] = c.Header
	}
	return h
}

// Index returns the 0-based column of f.
func (s *Schema) Index(f models.Field) (int, bool) {
	i, ok := s.index[f]
	return i, ok
}

// Has reports whether f is a column of this table.
func (s *Schema) Has(f models.Field) bool {
	_, ok := s.index[f]
	return ok
}

// IDColumn is the column holding the business key.
func (s *Schema) IDColumn() int {
	return s.index[models.FieldID]
}

// Cell returns the raw cell for f, or "" when the row is short or the
// table has no such column.
func (s *Schema) Cell(row []string, f models.Field) string {
	i, ok := s.index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Remap re-lays a raw row from s into target by field, copying cell literals
// verbatim. Fields target has and s lacks come out empty.
func (s *Schema) Remap(row []string, target *Schema) []string {
	out := make([]string, target.Width())
	for i, c := range target.columns {
		out[i] = s.Cell(row, c.Field)
	}
	return out
}
