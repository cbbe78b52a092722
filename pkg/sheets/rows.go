package sheets

import (
	"context"
	"strings"

	"github.com/sellercentry/account-health/pkg/retry"
)

// RowMatch is the outcome of locating a row. Found is false when the tab
// exists but holds no such id.
type RowMatch struct {
	// Index is the 1-based physical row.
	Index int
	Found bool
	// Cells is the raw row as read.
	Cells []string
}

// RowLocator finds rows by business key.
type RowLocator struct {
	client Client
	retry  *retry.Config
}

// NewRowLocator creates a RowLocator. A nil retry config uses defaults.
func NewRowLocator(client Client, retryCfg *retry.Config) *RowLocator {
	return &RowLocator{client: client, retry: retryCfg}
}

// FindRow reads tab and returns the first row whose id cell equals
// violationID exactly.
func (l *RowLocator) FindRow(ctx context.Context, spreadsheetID, tab string, schema *Schema, violationID string) (RowMatch, error) {
	rows, err := retry.DoIfRetryableWithResult(ctx, l.retry, func() ([][]string, error) {
		return l.client.ReadRows(ctx, spreadsheetID, tab)
	})
	if err != nil {
		return RowMatch{}, err
	}
	return LocateRow(rows, schema, violationID), nil
}

// LocateRow scans already-fetched rows (header first) top to bottom.
// Surrounding whitespace in the id cell is ignored, as Decode ignores it;
// otherwise the comparison is exact and case-sensitive.
func LocateRow(rows [][]string, schema *Schema, violationID string) RowMatch {
	if violationID == "" {
		return RowMatch{}
	}
	col := schema.IDColumn()
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if col < len(row) && strings.TrimSpace(row[col]) == violationID {
			return RowMatch{Index: i + 1, Found: true, Cells: row}
		}
	}
	return RowMatch{}
}
