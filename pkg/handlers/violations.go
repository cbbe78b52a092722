package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/audit"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/services"
	"github.com/sellercentry/account-health/pkg/sheets"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ViolationListResponse for GET /api/violations
type ViolationListResponse struct {
	Tenant     string              `json:"tenant"`
	Table      string              `json:"table"`
	Tab        string              `json:"tab"`
	Total      int                 `json:"total"`
	Violations []*models.Violation `json:"violations"`
}

// UpdateViolationRequest for PATCH /api/violations/{id}
type UpdateViolationRequest struct {
	Tenant string              `json:"tenant"`
	Table  string              `json:"table"`
	Fields models.FieldUpdates `json:"fields"`
}

// UpdateViolationResponse for PATCH /api/violations/{id}
type UpdateViolationResponse struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// ResolveViolationRequest for POST /api/violations/{id}/resolve. From
// defaults to the active table; from "resolved" reopens the record.
type ResolveViolationRequest struct {
	Tenant string `json:"tenant"`
	Status string `json:"status,omitempty"`
	From   string `json:"from,omitempty"`
}

// PartialMoveResponse reports a move that left the record in both tables.
type PartialMoveResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Partial bool   `json:"partial"`
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// BatchUpdateRequest for POST /api/violations/batch
type BatchUpdateRequest struct {
	Tenant string               `json:"tenant"`
	Table  string               `json:"table"`
	Items  []services.BatchItem `json:"items"`
}

// ============================================================================
// Handler
// ============================================================================

// ViolationsHandler serves the violation API for one tenant at a time.
type ViolationsHandler struct {
	store   *services.SheetStore
	batcher *services.BatchUpdater
	access  *TenantAccess
	auditor *audit.SecurityAuditor
	now     func() time.Time
	logger  *zap.Logger
}

// NewViolationsHandler creates a new violations handler.
func NewViolationsHandler(
	store *services.SheetStore,
	batcher *services.BatchUpdater,
	access *TenantAccess,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *ViolationsHandler {
	return &ViolationsHandler{
		store:   store,
		batcher: batcher,
		access:  access,
		auditor: auditor,
		now:     time.Now,
		logger:  logger.Named("violations"),
	}
}

// RegisterRoutes registers the violation routes on the given mux.
func (h *ViolationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/violations", authMiddleware.RequireUser(h.List))
	mux.HandleFunc("POST /api/violations/batch", authMiddleware.RequireUser(h.Batch))
	mux.HandleFunc("PATCH /api/violations/{id}", authMiddleware.RequireUser(h.Update))
	mux.HandleFunc("POST /api/violations/{id}/resolve", authMiddleware.RequireUser(h.Resolve))
}

// parseTable maps a table key to its logical table. Empty means active.
func parseTable(key string) (*sheets.LogicalTable, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return sheets.ActiveTable, nil
	}
	table, ok := sheets.TableByKey(key)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalid, "handlers.parseTable", "table must be active or resolved")
	}
	return table, nil
}

// fieldNames lists the fields of an update in a stable order.
func fieldNames(fields models.FieldUpdates) []string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	slices.Sort(names)
	return names
}

// parseStatuses parses a comma-separated status list.
func parseStatuses(raw string) ([]models.Status, error) {
	var statuses []models.Status
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, ok := models.ParseStatus(part)
		if !ok {
			return nil, apperrors.New(apperrors.KindInvalid, "handlers.parseStatuses", "unknown status "+strconv.Quote(strings.TrimSpace(part)))
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// List handles GET /api/violations?tenant=&table=&days=&status=&q=
func (h *ViolationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	user, _ := auth.GetUser(ctx)

	table, err := parseTable(query.Get("table"))
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	filter := services.ViolationFilter{Now: h.now(), Query: query.Get("q")}
	if raw := query.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeBadRequest(w, "days must be a non-negative integer", h.logger)
			return
		}
		filter.Days = days
	}
	if filter.Statuses, err = parseStatuses(query.Get("status")); err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	tenant, err := h.access.Authorize(ctx, user, query.Get("tenant"))
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	sheet := h.store.ForTenant(tenant.SheetID)
	violations, err := sheet.ListViolations(ctx, table)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	// Memoized by ListViolations; no backend call.
	tab, err := sheet.ResolveTab(ctx, table)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	violations = services.FilterViolations(violations, filter)
	writeResponse(w, http.StatusOK, ViolationListResponse{
		Tenant:     tenant.Subdomain,
		Table:      table.Key,
		Tab:        table.DisplayName(tab),
		Total:      len(violations),
		Violations: violations,
	}, h.logger)
}

// Update handles PATCH /api/violations/{id}
func (h *ViolationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.GetUser(ctx)
	id := strings.TrimSpace(r.PathValue("id"))

	var req UpdateViolationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", h.logger)
		return
	}
	if len(req.Fields) == 0 {
		writeBadRequest(w, "fields must not be empty", h.logger)
		return
	}
	table, err := parseTable(req.Table)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	tenant, err := h.access.Authorize(ctx, user, req.Tenant)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	if err := h.store.ForTenant(tenant.SheetID).ApplyUpdate(ctx, table, id, req.Fields); err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	h.auditor.LogMutation(ctx, audit.EventRecordUpdated, tenant.Subdomain, map[string]any{
		"id":     id,
		"table":  table.Key,
		"fields": fieldNames(req.Fields),
	})
	writeResponse(w, http.StatusOK, UpdateViolationResponse{ID: id, Updated: true}, h.logger)
}

// Resolve handles POST /api/violations/{id}/resolve
func (h *ViolationsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.GetUser(ctx)
	id := strings.TrimSpace(r.PathValue("id"))

	var req ResolveViolationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", h.logger)
		return
	}

	from, err := parseTable(req.From)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	to := sheets.ResolvedTable
	if from == sheets.ResolvedTable {
		to = sheets.ActiveTable
	}

	var status models.Status
	if strings.TrimSpace(req.Status) != "" {
		st, ok := models.ParseStatus(req.Status)
		if !ok {
			writeBadRequest(w, "unknown status "+strconv.Quote(req.Status), h.logger)
			return
		}
		status = st
	}

	tenant, err := h.access.Authorize(ctx, user, req.Tenant)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	result, err := h.store.ForTenant(tenant.SheetID).ResolveRecord(ctx, from, to, id, status)
	if err != nil {
		var partial *services.PartialMoveError
		if errors.As(err, &partial) {
			h.auditor.LogPartialMove(ctx, tenant.Subdomain, partial.ID, partial.From, partial.To)
			kind := apperrors.KindOf(partial.Err)
			writeResponse(w, StatusForKind(kind), PartialMoveResponse{
				Error:   string(kind),
				Message: "record was copied but could not be removed from the source table",
				Partial: true,
				ID:      partial.ID,
				From:    partial.From,
				To:      partial.To,
			}, h.logger)
			return
		}
		writeAppError(w, err, h.logger)
		return
	}

	h.auditor.LogMutation(ctx, audit.EventRecordMoved, tenant.Subdomain, map[string]any{
		"id":       id,
		"from":     result.From,
		"to":       result.To,
		"appended": result.Appended,
	})
	writeResponse(w, http.StatusOK, result, h.logger)
}

// Batch handles POST /api/violations/batch. It answers 200 when every item
// succeeded and 207 when some failed; per-item outcomes are in the body.
func (h *ViolationsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.GetUser(ctx)

	var req BatchUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", h.logger)
		return
	}
	table, err := parseTable(req.Table)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	tenant, err := h.access.Authorize(ctx, user, req.Tenant)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	result, err := h.batcher.Apply(ctx, h.store.ForTenant(tenant.SheetID), table, req.Items)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	h.auditor.LogMutation(ctx, audit.EventBatchUpdated, tenant.Subdomain, map[string]any{
		"table":     table.Key,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})

	status := http.StatusOK
	if !result.OK {
		status = http.StatusMultiStatus
	}
	writeResponse(w, status, result, h.logger)
}
