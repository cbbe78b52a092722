package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/services"
	"github.com/sellercentry/account-health/pkg/sheets"
)

const apiBase = "http://sellercentry.com/api/violations"

func TestViolationsHandler_List(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		query   string
		user    string
		status  int
		wantIDs []string
		wantTab string
	}{
		{"active by default", "?tenant=acme", acmeOwner, http.StatusOK, []string{"V1", "V2"}, "Active"},
		{"resolved table", "?tenant=acme&table=resolved", acmeOwner, http.StatusOK, []string{"R1"}, "Resolved Violations"},
		{"status filter", "?tenant=acme&status=working", acmeOwner, http.StatusOK, []string{"V1"}, "Active"},
		{"recency filter", "?tenant=acme&days=7", acmeOwner, http.StatusOK, []string{"V1"}, "Active"},
		{"text filter", "?tenant=acme&q=b00testv2", acmeOwner, http.StatusOK, []string{"V2"}, "Active"},
		{"team identity may read any tenant", "?tenant=acme", teamUser, http.StatusOK, []string{"V1", "V2"}, "Active"},
		{"unauthenticated", "?tenant=acme", "", http.StatusUnauthorized, nil, ""},
		{"other tenant", "?tenant=beta", acmeOwner, http.StatusForbidden, nil, ""},
		{"missing tenant", "", acmeOwner, http.StatusBadRequest, nil, ""},
		{"unknown tenant for team", "?tenant=nobody", teamUser, http.StatusNotFound, nil, ""},
		{"tenant without sheet", "?tenant=pending", teamUser, http.StatusNotFound, nil, ""},
		{"bad table", "?tenant=acme&table=archived", acmeOwner, http.StatusBadRequest, nil, ""},
		{"bad days", "?tenant=acme&days=-1", acmeOwner, http.StatusBadRequest, nil, ""},
		{"bad status", "?tenant=acme&status=Pending", acmeOwner, http.StatusBadRequest, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, apiBase+tt.query, tt.user, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}

			resp := decodeBody[ViolationListResponse](t, rec)
			assert.Equal(t, "acme", resp.Tenant)
			assert.Equal(t, tt.wantTab, resp.Tab)
			assert.Equal(t, len(tt.wantIDs), resp.Total)
			var ids []string
			for _, v := range resp.Violations {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestViolationsHandler_List_TenantHost(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "http://acme.sellercentry.com/api/violations", acmeOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeBody[ViolationListResponse](t, rec).Total)

	rec = env.do(t, http.MethodGet, "http://acme.sellercentry.com/api/violations?tenant=beta", teamUser, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestViolationsHandler_List_MissingTab(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, apiBase+"?tenant=beta&table=resolved", teamUser, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestViolationsHandler_List_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.client.SetFaults(failOn(sheets.OpReadRows, apperrors.New(apperrors.KindRateLimited, "sheets.ReadRows", "quota exceeded")))

	rec := env.do(t, http.MethodGet, apiBase+"?tenant=acme", acmeOwner, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestViolationsHandler_Update(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, apiBase+"/V2", acmeOwner, map[string]any{
		"tenant": "acme",
		"fields": map[string]string{"notes": "called seller", "status": "working"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, UpdateViolationResponse{ID: "V2", Updated: true}, decodeBody[UpdateViolationResponse](t, rec))

	match := sheets.LocateRow(env.client.Rows("sheet-acme", "Active"), sheets.ActiveSchema, "V2")
	require.True(t, match.Found)
	assert.Equal(t, "called seller", sheets.ActiveSchema.Cell(match.Cells, "notes"))
	assert.Equal(t, "Working", sheets.ActiveSchema.Cell(match.Cells, "status"))

	t.Run("unknown id", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, apiBase+"/V404", acmeOwner, map[string]any{
			"tenant": "acme", "fields": map[string]string{"notes": "x"},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty fields", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, apiBase+"/V1", acmeOwner, map[string]any{"tenant": "acme"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown body field", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, apiBase+"/V1", acmeOwner, map[string]any{"tenant": "acme", "extra": 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("forbidden tenant", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, apiBase+"/V1", "owner@beta.test", map[string]any{
			"tenant": "acme", "fields": map[string]string{"notes": "x"},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestViolationsHandler_Resolve(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, apiBase+"/V1/resolve", acmeOwner, map[string]any{"tenant": "acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[services.MoveResult](t, rec)
	assert.Equal(t, "V1", result.ID)
	assert.Equal(t, "active", result.From)
	assert.Equal(t, "resolved", result.To)
	assert.True(t, result.Appended)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Resolved", string(result.Record.Status))

	assert.False(t, sheets.LocateRow(env.client.Rows("sheet-acme", "Active"), sheets.ActiveSchema, "V1").Found)
	assert.True(t, sheets.LocateRow(env.client.Rows("sheet-acme", "Resolved Violations"), sheets.ResolvedSchema, "V1").Found)

	t.Run("reopen", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/R1/resolve", acmeOwner, map[string]any{"tenant": "acme", "from": "resolved"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "active", decodeBody[services.MoveResult](t, rec).To)
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/V2/resolve", acmeOwner, map[string]any{"tenant": "acme", "status": "Done"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/V404/resolve", acmeOwner, map[string]any{"tenant": "acme"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestViolationsHandler_Resolve_PartialMove(t *testing.T) {
	env := newTestEnv(t)
	env.client.SetFaults(failOn(sheets.OpDeleteRow, apperrors.New(apperrors.KindRateLimited, "sheets.DeleteRow", "quota exceeded")))

	rec := env.do(t, http.MethodPost, apiBase+"/V2/resolve", acmeOwner, map[string]any{"tenant": "acme"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeBody[PartialMoveResponse](t, rec)
	assert.True(t, resp.Partial)
	assert.Equal(t, "rate_limited", resp.Error)
	assert.Equal(t, "V2", resp.ID)

	// Both copies exist until a retry completes the move.
	assert.True(t, sheets.LocateRow(env.client.Rows("sheet-acme", "Active"), sheets.ActiveSchema, "V2").Found)
	assert.True(t, sheets.LocateRow(env.client.Rows("sheet-acme", "Resolved Violations"), sheets.ResolvedSchema, "V2").Found)

	env.client.SetFaults(nil)
	rec = env.do(t, http.MethodPost, apiBase+"/V2/resolve", acmeOwner, map[string]any{"tenant": "acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[services.MoveResult](t, rec).Appended)
	assert.False(t, sheets.LocateRow(env.client.Rows("sheet-acme", "Active"), sheets.ActiveSchema, "V2").Found)
}

func TestViolationsHandler_Batch(t *testing.T) {
	env := newTestEnv(t)

	t.Run("all succeed", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/batch", acmeOwner, map[string]any{
			"tenant": "acme",
			"items": []map[string]any{
				{"id": "V1", "fields": map[string]string{"notes": "one"}},
				{"id": "V2", "fields": map[string]string{"notes": "two"}},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decodeBody[services.BatchResult](t, rec)
		assert.True(t, result.OK)
		assert.Equal(t, 2, result.Succeeded)
	})

	t.Run("partial failure", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/batch", acmeOwner, map[string]any{
			"tenant": "acme",
			"items": []map[string]any{
				{"id": "V1", "fields": map[string]string{"notes": "again"}},
				{"id": "V404", "fields": map[string]string{"notes": "nope"}},
				{"id": "V2", "fields": map[string]string{"at_risk_amount": "lots"}},
			},
		})
		require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
		result := decodeBody[services.BatchResult](t, rec)
		assert.False(t, result.OK)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 2, result.Failed)
		require.Len(t, result.Results, 3)
		assert.Equal(t, apperrors.KindNotFound, result.Results[1].Kind)
		assert.Equal(t, apperrors.KindInvalid, result.Results[2].Kind)
	})

	t.Run("empty batch", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiBase+"/batch", acmeOwner, map[string]any{"tenant": "acme", "items": []any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("over cap", func(t *testing.T) {
		items := make([]map[string]any, 6)
		for i := range items {
			items[i] = map[string]any{"id": "V1", "fields": map[string]string{"notes": "x"}}
		}
		rec := env.do(t, http.MethodPost, apiBase+"/batch", acmeOwner, map[string]any{"tenant": "acme", "items": items})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestViolationsHandler_AuditsMutations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, apiBase+"/V1/resolve", acmeOwner, map[string]any{"tenant": "acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, apiBase+"?tenant=beta", acmeOwner, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	entries := env.audit.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "record_moved", entries[0].ContextMap()["event_type"])
	assert.Equal(t, "acme", entries[0].ContextMap()["tenant"])
	assert.Equal(t, "tenant_access_denied", entries[1].ContextMap()["event_type"])
	assert.Equal(t, "beta", entries[1].ContextMap()["tenant"])
}
