package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/repositories"
	"github.com/sellercentry/account-health/pkg/retry"
	"github.com/sellercentry/account-health/pkg/sheets"
	"github.com/sellercentry/account-health/pkg/workpool"
)

// SheetStoreConfig tunes the sheet store.
type SheetStoreConfig struct {
	// Retry applies to idempotent backend calls (probe, read, cell update).
	Retry *retry.Config
	// ClientsConcurrency bounds tenants read in parallel by the detailed
	// client listing.
	ClientsConcurrency int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SheetStore is the data-access facade over tenants' spreadsheets.
// It is safe for concurrent use and holds no per-tenant state; per-request
// state lives in the TenantSheet returned by ForTenant.
type SheetStore struct {
	client   sheets.Client
	tenants  repositories.TenantRepository
	resolver *sheets.TabResolver
	locator  *sheets.RowLocator
	retry    *retry.Config
	pool     *workpool.Pool
	now      func() time.Time
	logger   *zap.Logger
}

// NewSheetStore creates a SheetStore.
func NewSheetStore(client sheets.Client, tenants repositories.TenantRepository, cfg SheetStoreConfig, logger *zap.Logger) *SheetStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClientsConcurrency < 1 {
		cfg.ClientsConcurrency = 4
	}
	return &SheetStore{
		client:   client,
		tenants:  tenants,
		resolver: sheets.NewTabResolver(client, cfg.Retry, logger),
		locator:  sheets.NewRowLocator(client, cfg.Retry),
		retry:    cfg.Retry,
		pool:     workpool.New(workpool.Config{MaxConcurrent: cfg.ClientsConcurrency}, logger),
		now:      cfg.Now,
		logger:   logger.Named("sheet-store"),
	}
}

// ForTenant returns a handle scoped to one spreadsheet. Tab resolution is
// memoized on the handle, so create one per request and drop it after.
func (s *SheetStore) ForTenant(spreadsheetID string) *TenantSheet {
	return &TenantSheet{
		store:         s,
		spreadsheetID: spreadsheetID,
		tabs:          make(map[string]sheets.TabResolution),
	}
}

// TenantSheet is a request-scoped view of one tenant's spreadsheet.
type TenantSheet struct {
	store         *SheetStore
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]sheets.TabResolution
}

// SpreadsheetID returns the backing spreadsheet.
func (t *TenantSheet) SpreadsheetID() string {
	return t.spreadsheetID
}

// ResolveTab returns the tab backing table, probing aliases on first use.
// Once committed, the same name is used for the rest of the handle's life.
func (t *TenantSheet) ResolveTab(ctx context.Context, table *sheets.LogicalTable) (sheets.TabResolution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if res, ok := t.tabs[table.Key]; ok {
		return res, nil
	}
	res, err := t.store.resolver.Resolve(ctx, t.spreadsheetID, table.Aliases)
	if err != nil {
		return sheets.TabResolution{}, err
	}
	t.tabs[table.Key] = res
	return res, nil
}

// requireTab is ResolveTab for operations that need a physical tab.
func (t *TenantSheet) requireTab(ctx context.Context, table *sheets.LogicalTable, op string) (string, error) {
	res, err := t.ResolveTab(ctx, table)
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", apperrors.New(apperrors.KindNotFound, op,
			fmt.Sprintf("no %s violations tab found", table.Key))
	}
	return res.Name, nil
}

func (t *TenantSheet) readRows(ctx context.Context, tab string) ([][]string, error) {
	return retry.DoIfRetryableWithResult(ctx, t.store.retry, func() ([][]string, error) {
		return t.store.client.ReadRows(ctx, t.spreadsheetID, tab)
	})
}

// ListViolations returns every record of table. An existing but empty tab
// yields an empty, non-nil slice.
func (t *TenantSheet) ListViolations(ctx context.Context, table *sheets.LogicalTable) ([]*models.Violation, error) {
	tab, err := t.requireTab(ctx, table, "store.ListViolations")
	if err != nil {
		return nil, err
	}
	rows, err := t.readRows(ctx, tab)
	if err != nil {
		return nil, err
	}

	violations := make([]*models.Violation, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		v := table.Schema.Decode(rows[i])
		if v.ID == "" {
			continue
		}
		v.Row = i + 1
		violations = append(violations, v)
	}
	return violations, nil
}

// FindByKey locates the row holding id. Absence is reported through
// RowMatch.Found, not as an error.
func (t *TenantSheet) FindByKey(ctx context.Context, table *sheets.LogicalTable, id string) (sheets.RowMatch, error) {
	tab, err := t.requireTab(ctx, table, "store.FindByKey")
	if err != nil {
		return sheets.RowMatch{}, err
	}
	return t.store.locator.FindRow(ctx, t.spreadsheetID, tab, table.Schema, id)
}

// ApplyUpdate writes only the supplied fields of one record, in one backend
// call. Validation happens before any backend access.
func (t *TenantSheet) ApplyUpdate(ctx context.Context, table *sheets.LogicalTable, id string, fields models.FieldUpdates) error {
	const op = "store.ApplyUpdate"

	if id == "" {
		return apperrors.New(apperrors.KindInvalid, op, "violation id is required")
	}
	cells, err := table.Schema.EncodeUpdates(fields)
	if err != nil {
		return err
	}

	tab, err := t.requireTab(ctx, table, op)
	if err != nil {
		return err
	}
	match, err := t.store.locator.FindRow(ctx, t.spreadsheetID, tab, table.Schema, id)
	if err != nil {
		return err
	}
	if !match.Found {
		return apperrors.New(apperrors.KindNotFound, op,
			fmt.Sprintf("violation %s not found in %s", id, table.Key))
	}
	if err := checkDateOrder(table.Schema, match.Cells, cells); err != nil {
		return err
	}

	return retry.DoIfRetryable(ctx, t.store.retry, func() error {
		return t.store.client.UpdateCells(ctx, t.spreadsheetID, tab, match.Index, cells)
	})
}

// checkDateOrder rejects an update that would leave the resolved date
// before the flagged date.
func checkDateOrder(schema *sheets.Schema, existing []string, updates map[int]string) error {
	flaggedCol, hasFlagged := schema.Index(models.FieldFlaggedDate)
	resolvedCol, hasResolved := schema.Index(models.FieldResolvedDate)
	if !hasFlagged || !hasResolved {
		return nil
	}
	_, touchesFlagged := updates[flaggedCol]
	_, touchesResolved := updates[resolvedCol]
	if !touchesFlagged && !touchesResolved {
		return nil
	}

	pick := func(col int) string {
		if v, ok := updates[col]; ok {
			return v
		}
		if col < len(existing) {
			return existing[col]
		}
		return ""
	}
	flagged := sheets.ParseDate(pick(flaggedCol))
	resolved := sheets.ParseDate(pick(resolvedCol))
	if flagged != nil && resolved != nil && resolved.Before(*flagged) {
		return apperrors.New(apperrors.KindInvalid, "store.ApplyUpdate",
			"resolved date must not be before the flagged date")
	}
	return nil
}

// CopyResult describes the first phase of a move.
type CopyResult struct {
	ID string
	// Appended is false when the target already held the id, for example
	// after an earlier move that crashed before its delete phase.
	Appended bool
	// Cells is the row as it now exists in the target.
	Cells []string
}

// MoveResult describes a completed move.
type MoveResult struct {
	ID       string            `json:"id"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Appended bool              `json:"appended"`
	Record   *models.Violation `json:"record"`
}

// PartialMoveError reports a move whose copy phase succeeded but whose
// delete phase did not. The record is present in both tables; a
// reconciliation pass can find it by ID.
type PartialMoveError struct {
	ID   string
	From string
	To   string
	Err  error
}

func (e *PartialMoveError) Error() string {
	return fmt.Sprintf("violation %s copied to %s but not removed from %s: %v", e.ID, e.To, e.From, e.Err)
}

func (e *PartialMoveError) Unwrap() error { return e.Err }

// ResolveRecord moves a record from one table to another as a status
// transition. It runs CopyRecord and then DeleteRecord; the order is
// what makes a crash in between leave a duplicate instead of losing the
// record. An empty status defaults to Resolved (or Working when reopening).
func (t *TenantSheet) ResolveRecord(ctx context.Context, from, to *sheets.LogicalTable, id string, status models.Status) (*MoveResult, error) {
	const op = "store.ResolveRecord"

	if from.Key == to.Key {
		return nil, apperrors.New(apperrors.KindInvalid, op, "source and target tables must differ")
	}
	if id == "" {
		return nil, apperrors.New(apperrors.KindInvalid, op, "violation id is required")
	}
	status, err := targetStatus(to, status)
	if err != nil {
		return nil, err
	}

	copied, err := t.CopyRecord(ctx, from, to, id, status)
	if err != nil {
		return nil, err
	}

	if err := t.DeleteRecord(ctx, from, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		t.store.logger.Error("Move left a duplicate record",
			zap.String("spreadsheet_id", t.spreadsheetID),
			zap.String("violation_id", id),
			zap.String("from", from.Key),
			zap.String("to", to.Key),
			zap.Error(err))
		return nil, &PartialMoveError{ID: id, From: from.Key, To: to.Key, Err: err}
	}

	record := to.Schema.Decode(copied.Cells)
	return &MoveResult{
		ID:       id,
		From:     from.Key,
		To:       to.Key,
		Appended: copied.Appended,
		Record:   record,
	}, nil
}

func targetStatus(to *sheets.LogicalTable, status models.Status) (models.Status, error) {
	wantResolved := to.Schema.Has(models.FieldResolvedDate)
	if status == "" {
		if wantResolved {
			return models.StatusResolved, nil
		}
		return models.StatusWorking, nil
	}
	st, ok := models.ParseStatus(string(status))
	if !ok {
		return "", apperrors.New(apperrors.KindInvalid, "store.ResolveRecord", fmt.Sprintf("unknown status %q", status))
	}
	if wantResolved && !st.IsResolved() || !wantResolved && !st.IsActive() {
		return "", apperrors.New(apperrors.KindInvalid, "store.ResolveRecord",
			fmt.Sprintf("status %q does not belong in the %s table", st, to.Key))
	}
	return st, nil
}

// CopyRecord is the first phase of a move: append the source row, remapped
// into the target schema, to the target table. The append is not retried;
// a retried append whose first attempt landed would duplicate the row.
func (t *TenantSheet) CopyRecord(ctx context.Context, from, to *sheets.LogicalTable, id string, status models.Status) (*CopyResult, error) {
	const op = "store.CopyRecord"

	fromTab, err := t.requireTab(ctx, from, op)
	if err != nil {
		return nil, err
	}
	toTab, err := t.requireTab(ctx, to, op)
	if err != nil {
		return nil, err
	}

	sourceRows, err := t.readRows(ctx, fromTab)
	if err != nil {
		return nil, err
	}
	source := sheets.LocateRow(sourceRows, from.Schema, id)
	if !source.Found {
		return nil, apperrors.New(apperrors.KindNotFound, op,
			fmt.Sprintf("violation %s not found in %s", id, from.Key))
	}

	targetRows, err := t.readRows(ctx, toTab)
	if err != nil {
		return nil, err
	}
	if existing := sheets.LocateRow(targetRows, to.Schema, id); existing.Found {
		t.store.logger.Warn("Target already holds violation, skipping append",
			zap.String("spreadsheet_id", t.spreadsheetID),
			zap.String("violation_id", id),
			zap.String("table", to.Key))
		return &CopyResult{ID: id, Appended: false, Cells: existing.Cells}, nil
	}

	cells := from.Schema.Remap(source.Cells, to.Schema)
	if col, ok := to.Schema.Index(models.FieldStatus); ok {
		cells[col] = string(status)
	}
	if col, ok := to.Schema.Index(models.FieldResolvedDate); ok && sheets.ParseDate(cells[col]) == nil {
		cells[col] = sheets.FormatDate(t.resolvedDate(to.Schema, cells))
	}

	if err := t.store.client.AppendRow(ctx, t.spreadsheetID, toTab, cells); err != nil {
		return nil, err
	}
	return &CopyResult{ID: id, Appended: true, Cells: cells}, nil
}

// resolvedDate is today, or the flagged date if the clock is behind it.
func (t *TenantSheet) resolvedDate(schema *sheets.Schema, cells []string) time.Time {
	now := t.store.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if flagged := sheets.ParseDate(schema.Cell(cells, models.FieldFlaggedDate)); flagged != nil && flagged.After(today) {
		return *flagged
	}
	return today
}

// DeleteRecord is the second phase of a move. The row is re-located right
// before deleting because earlier deletes shift row positions. Not retried.
func (t *TenantSheet) DeleteRecord(ctx context.Context, table *sheets.LogicalTable, id string) error {
	const op = "store.DeleteRecord"

	tab, err := t.requireTab(ctx, table, op)
	if err != nil {
		return err
	}
	match, err := t.store.locator.FindRow(ctx, t.spreadsheetID, tab, table.Schema, id)
	if err != nil {
		return err
	}
	if !match.Found {
		return apperrors.New(apperrors.KindNotFound, op,
			fmt.Sprintf("violation %s not found in %s", id, table.Key))
	}
	return t.store.client.DeleteRow(ctx, t.spreadsheetID, tab, match.Index)
}

// ListClients summarizes every tenant. The cheap path only reads the
// directory. The detailed path also reads both tables of every tenant; a
// tenant without a tab reports it in MissingTables, while rate-limit and
// transport failures fail the whole listing.
func (s *SheetStore) ListClients(ctx context.Context, detailed bool) ([]*models.ClientOverview, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	overviews := make([]*models.ClientOverview, len(tenants))
	for i, tenant := range tenants {
		overviews[i] = models.NewClientOverview(tenant)
	}
	if !detailed {
		return overviews, nil
	}

	items := make([]workpool.Item[*models.LiveCounts], len(tenants))
	for i, tenant := range tenants {
		tenant := tenant
		items[i] = workpool.Item[*models.LiveCounts]{
			ID: tenant.Subdomain,
			Execute: func(ctx context.Context) (*models.LiveCounts, error) {
				return s.liveCounts(ctx, tenant)
			},
		}
	}

	for i, r := range workpool.Process(ctx, s.pool, items) {
		if r.Err != nil {
			return nil, fmt.Errorf("failed to read live counts for %s: %w", r.ID, r.Err)
		}
		overviews[i].Live = r.Result
	}
	return overviews, nil
}

// TenantOverview returns one tenant's directory snapshot together with
// counts read live from its sheet.
func (s *SheetStore) TenantOverview(ctx context.Context, tenant *models.Tenant) (*models.ClientOverview, error) {
	overview := models.NewClientOverview(tenant)
	live, err := s.liveCounts(ctx, tenant)
	if err != nil {
		return nil, err
	}
	overview.Live = live
	return overview, nil
}

func (s *SheetStore) liveCounts(ctx context.Context, tenant *models.Tenant) (*models.LiveCounts, error) {
	counts := &models.LiveCounts{ByStatus: make(map[models.Status]int)}
	if tenant.SheetID == "" {
		counts.MissingTables = []string{sheets.ActiveTable.Key, sheets.ResolvedTable.Key}
		return counts, nil
	}

	sheet := s.ForTenant(tenant.SheetID)
	now := s.now()
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	for _, table := range []*sheets.LogicalTable{sheets.ActiveTable, sheets.ResolvedTable} {
		violations, err := sheet.ListViolations(ctx, table)
		if errors.Is(err, apperrors.ErrNotFound) {
			counts.MissingTables = append(counts.MissingTables, table.Key)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, v := range violations {
			counts.ByStatus[v.Status]++
			if v.FlaggedDate != nil && !v.FlaggedDate.Before(weekAgo) {
				counts.FlaggedLast7++
			}
			if table == sheets.ActiveTable {
				counts.Active++
				counts.AtRiskAmount += v.AtRiskAmount
			} else {
				counts.Resolved++
				if v.ResolvedDate != nil && !v.ResolvedDate.Before(monthAgo) {
					counts.ResolvedLast30++
				}
			}
		}
	}
	return counts, nil
}
