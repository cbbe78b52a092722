package sheets

import (
	"context"
	"sync"

	"github.com/sellercentry/account-health/pkg/apperrors"
)

// Op names a Client operation for fault injection and call accounting.
type Op string

const (
	OpProbe       Op = "probe"
	OpReadRows    Op = "read_rows"
	OpAppendRow   Op = "append_row"
	OpUpdateCells Op = "update_cells"
	OpDeleteRow   Op = "delete_row"
)

// FaultFunc may return an error to fail an operation before it touches data.
type FaultFunc func(op Op, spreadsheetID, tab string) error

// MemoryClient is an in-process Client used for local development and tests.
// It keeps one grid of strings per tab and applies the same row semantics as
// the remote backend.
type MemoryClient struct {
	mu     sync.Mutex
	books  map[string]map[string][][]string
	calls  map[Op]int
	faults FaultFunc
}

// NewMemoryClient creates an empty in-memory backend.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		books: make(map[string]map[string][][]string),
		calls: make(map[Op]int),
	}
}

// AddTab creates (or replaces) a tab with the given rows, header first.
func (m *MemoryClient) AddTab(spreadsheetID, tab string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[spreadsheetID]
	if !ok {
		book = make(map[string][][]string)
		m.books[spreadsheetID] = book
	}
	book[tab] = copyRows(rows)
}

// Rows returns a copy of a tab's rows, or nil if it does not exist.
func (m *MemoryClient) Rows(spreadsheetID, tab string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.books[spreadsheetID][tab]
	if !ok {
		return nil
	}
	return copyRows(rows)
}

// SetFaults installs a fault hook. Pass nil to clear it.
func (m *MemoryClient) SetFaults(f FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = f
}

// Calls returns how many times op has been invoked.
func (m *MemoryClient) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of backend calls of any kind.
func (m *MemoryClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// begin records the call, runs the fault hook and returns the tab.
// Callers hold m.mu.
func (m *MemoryClient) begin(op Op, spreadsheetID, tab string) ([][]string, error) {
	m.calls[op]++
	if m.faults != nil {
		if err := m.faults(op, spreadsheetID, tab); err != nil {
			return nil, err
		}
	}
	rows, ok := m.books[spreadsheetID][tab]
	if !ok {
		return nil, tabNotFound("sheets."+string(op), tab)
	}
	return rows, nil
}

func (m *MemoryClient) Probe(ctx context.Context, spreadsheetID, tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.begin(OpProbe, spreadsheetID, tab)
	return err
}

func (m *MemoryClient) ReadRows(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin(OpReadRows, spreadsheetID, tab)
	if err != nil {
		return nil, err
	}
	return copyRows(rows), nil
}

func (m *MemoryClient) AppendRow(ctx context.Context, spreadsheetID, tab string, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin(OpAppendRow, spreadsheetID, tab)
	if err != nil {
		return err
	}
	m.books[spreadsheetID][tab] = append(rows, append([]string(nil), cells...))
	return nil
}

func (m *MemoryClient) UpdateCells(ctx context.Context, spreadsheetID, tab string, row int, cells map[int]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin(OpUpdateCells, spreadsheetID, tab)
	if err != nil {
		return err
	}
	if row < 1 {
		return apperrors.New(apperrors.KindInvalid, "sheets.UpdateCells", "row index must be positive")
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	target := rows[row-1]
	for col, v := range cells {
		for len(target) <= col {
			target = append(target, "")
		}
		target[col] = v
	}
	rows[row-1] = target
	m.books[spreadsheetID][tab] = rows
	return nil
}

func (m *MemoryClient) DeleteRow(ctx context.Context, spreadsheetID, tab string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.begin(OpDeleteRow, spreadsheetID, tab)
	if err != nil {
		return err
	}
	if row < 1 || row > len(rows) {
		return apperrors.New(apperrors.KindInvalid, "sheets.DeleteRow", "row index out of range")
	}
	m.books[spreadsheetID][tab] = append(rows[:row-1], rows[row:]...)
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

var _ Client = (*MemoryClient)(nil)
