package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/logging"
)

// Pinger checks a dependency, e.g. the directory database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Directory   string `json:"directory"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	version   string
	env       string
	directory Pinger
	logger    *zap.Logger
}

// NewHealthHandler creates a HealthHandler. directory may be nil when the
// tenant directory is file-backed.
func NewHealthHandler(version, env string, directory Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{version: version, env: env, directory: directory, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns a plain "ok" for load balancer checks and never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns service details and the directory status; 503 if the directory
// database is unreachable.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.version,
		Service:     "account-health",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.env,
		Directory:   "file",
	}
	status := http.StatusOK

	if h.directory != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		response.Directory = "ok"
		if err := h.directory.Ping(ctx); err != nil {
			h.logger.Warn("Directory database ping failed", logging.Error(err))
			response.Status = "degraded"
			response.Directory = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
