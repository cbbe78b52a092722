// Package sheets is the data-access layer over tenants' spreadsheets.
//
// A tenant's violations live in tabs of a remote spreadsheet whose exact tab
// names are not under our control. This package discovers which tab backs a
// logical table (TabResolver), finds rows by business key (RowLocator), and
// owns the column layout of each table (Schema). Everything above this
// package talks in fields and records, never in column positions.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/sellercentry/account-health/pkg/apperrors"
)

// ErrTabNotFound is returned (wrapped in a not_found apperrors.Error) when a
// tab name does not exist in the spreadsheet. It is distinct from an
// absent row, which is reported as a value by RowLocator.
var ErrTabNotFound = errors.New("sheet tab not found")

// Client is row-level access to a spreadsheet backend. Rows are 1-based
// physical indexes, row 1 being the header. Columns are 0-based.
//
// Implementations classify failures: a missing tab wraps ErrTabNotFound,
// throttling is apperrors.KindRateLimited, everything else on the wire is
// apperrors.KindTransport.
type Client interface {
	// Probe performs the cheapest possible read against tab. It succeeds
	// for an existing tab even when the tab is empty.
	Probe(ctx context.Context, spreadsheetID, tab string) error
	// ReadRows returns every row of tab including the header.
	ReadRows(ctx context.Context, spreadsheetID, tab string) ([][]string, error)
	// AppendRow adds cells as a new row after the last non-empty row.
	AppendRow(ctx context.Context, spreadsheetID, tab string, cells []string) error
	// UpdateCells overwrites the given columns of one row in a single call.
	UpdateCells(ctx context.Context, spreadsheetID, tab string, row int, cells map[int]string) error
	// DeleteRow removes one row, shifting the rows below it up.
	DeleteRow(ctx context.Context, spreadsheetID, tab string, row int) error
}

func tabNotFound(op, tab string) error {
	return apperrors.Wrap(apperrors.KindNotFound, op, fmt.Errorf("%w: %q", ErrTabNotFound, tab))
}

// IsTabNotFound reports whether err means the tab does not exist.
func IsTabNotFound(err error) bool {
	return errors.Is(err, ErrTabNotFound)
}

// columnLetter converts a 0-based column index to A1 notation (0 → A, 26 → AA).
func columnLetter(col int) string {
	letters := ""
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		letters = string(rune('A'+(n-1)%26)) + letters
	}
	return letters
}
