package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/routing"
)

// PagesHandler serves page data under the namespaces the gate rewrites
// tenant and team hosts into. The namespaces are not addressable directly:
// a request that did not come through a rewrite is answered 404.
type PagesHandler struct {
	clients *ClientsHandler
	access  *TenantAccess
	logger  *zap.Logger
}

// NewPagesHandler creates a new pages handler.
func NewPagesHandler(clients *ClientsHandler, access *TenantAccess, logger *zap.Logger) *PagesHandler {
	return &PagesHandler{clients: clients, access: access, logger: logger.Named("pages")}
}

// RegisterRoutes registers the page-data routes on the given mux.
func (h *PagesHandler) RegisterRoutes(mux *http.ServeMux, config routing.GateConfig) {
	mux.HandleFunc("GET "+config.TenantPrefix+"/{tenant}/overview", h.TenantOverview)
	mux.HandleFunc("GET "+config.TeamPrefix+"/clients", h.TeamClients)
}

// TenantOverview handles GET /s/{tenant}/overview.
func (h *PagesHandler) TenantOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, ok := routing.GetScope(ctx)
	if !ok || !scope.Rewritten || scope.Host.Kind != routing.HostTenant || scope.Tenant != r.PathValue("tenant") {
		http.NotFound(w, r)
		return
	}
	user, _ := auth.GetUser(ctx)

	tenant, err := h.access.Authorize(ctx, user, scope.Tenant)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	overview, err := h.clients.store.TenantOverview(ctx, tenant)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeResponse(w, http.StatusOK, overview, h.logger)
}

// TeamClients handles GET /team/clients. The gate has already restricted
// the team host to privileged identities.
func (h *PagesHandler) TeamClients(w http.ResponseWriter, r *http.Request) {
	scope, ok := routing.GetScope(r.Context())
	if !ok || !scope.Rewritten || scope.Host.Kind != routing.HostTeam {
		http.NotFound(w, r)
		return
	}
	detailed, err := parseDetailed(r)
	if err != nil {
		writeBadRequest(w, err.Error(), h.logger)
		return
	}
	h.clients.respond(w, r, detailed)
}
