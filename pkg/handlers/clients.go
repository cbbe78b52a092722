package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/services"
)

// ClientListResponse for GET /api/clients
type ClientListResponse struct {
	Clients  []*models.ClientOverview `json:"clients"`
	Total    int                      `json:"total"`
	Detailed bool                     `json:"detailed"`
}

// ClientsHandler serves the team's cross-tenant client listing.
type ClientsHandler struct {
	store  *services.SheetStore
	access *TenantAccess
	logger *zap.Logger
}

// NewClientsHandler creates a new clients handler.
func NewClientsHandler(store *services.SheetStore, access *TenantAccess, logger *zap.Logger) *ClientsHandler {
	return &ClientsHandler{store: store, access: access, logger: logger.Named("clients")}
}

// RegisterRoutes registers the clients routes on the given mux.
func (h *ClientsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/clients", authMiddleware.RequireUser(h.List))
}

// List handles GET /api/clients?detailed=true|false. Team identities only.
// The detailed listing reads every tenant's sheet and is much slower.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.GetUser(ctx)

	detailed, err := parseDetailed(r)
	if err != nil {
		writeBadRequest(w, err.Error(), h.logger)
		return
	}

	privileged, err := h.access.IsPrivileged(ctx, user)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	if !privileged {
		writeAppError(w, apperrors.New(apperrors.KindForbidden, "clients.List", "team access required"), h.logger)
		return
	}

	h.respond(w, r, detailed)
}

func (h *ClientsHandler) respond(w http.ResponseWriter, r *http.Request, detailed bool) {
	clients, err := h.store.ListClients(r.Context(), detailed)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeResponse(w, http.StatusOK, ClientListResponse{
		Clients:  clients,
		Total:    len(clients),
		Detailed: detailed,
	}, h.logger)
}

// parseDetailed reads the detailed query flag. Absent means the cheap
// directory-only listing; the sheet-reading path must be asked for.
func parseDetailed(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("detailed")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("detailed must be true or false")
	}
	return v, nil
}
