package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
	"github.com/upb/concept-studio/services/routing"
	"github.com/upb/concept-studio/utils"
)

// Version is reported by the status endpoint
const Version = "1.0.0"

const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                        `json:"status"`
	Timestamp string                        `json:"timestamp"`
	Checks    map[string]string             `json:"checks,omitempty"`
	Providers map[providers.ProviderID]bool `json:"providers,omitempty"`
}

// StatusResponse describes the running service and its provider chain
type StatusResponse struct {
	Version     string                                         `json:"version"`
	Environment string                                         `json:"environment"`
	Preferred   string                                         `json:"preferred_provider"`
	TextOrder   []providers.ProviderID                         `json:"text_order"`
	ImageOrder  []providers.ProviderID                         `json:"image_order"`
	Providers   map[providers.ProviderID]bool                  `json:"providers"`
	Stats       map[providers.ProviderID]routing.ProviderStats `json:"stats"`
}

// ProviderMonitor exposes the provider chain for health and status reporting
type ProviderMonitor interface {
	Registry() *providers.Registry
	Policy() *routing.FallbackPolicy
	Stats() map[providers.ProviderID]routing.ProviderStats
}

// HistoryCounter is the part of the history store readiness needs
type HistoryCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db          *sql.DB
	history     HistoryCounter
	monitor     ProviderMonitor
	environment string
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when history lives on disk;
// history and monitor may be nil, which readiness reports as not configured.
func NewHealthHandler(db *sql.DB, history HistoryCounter, monitor ProviderMonitor, environment string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		history:     history,
		monitor:     monitor,
		environment: environment,
		logger:      logger,
	}
}

// HandleLiveness handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHealth handles GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Providers: h.providerStatus(),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz. Ready means history storage answers and at least
// one text provider is configured; the image provider is reported but not required.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	storage := h.checkStorage(ctx)
	checks["storage"] = storage
	if storage != checkHealthy {
		ready = false
	}

	checks["text_providers"] = checkNotConfigured
	checks["image_provider"] = checkNotConfigured
	if h.monitor != nil {
		registry := h.monitor.Registry()
		if registry.AnyConfigured(providers.FamilyText) {
			checks["text_providers"] = checkHealthy
		}
		if registry.AnyConfigured(providers.FamilyImage) {
			checks["image_provider"] = checkHealthy
		}
	}
	if checks["text_providers"] != checkHealthy {
		ready = false
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Version:     Version,
		Environment: h.environment,
		Providers:   h.providerStatus(),
		Stats:       map[providers.ProviderID]routing.ProviderStats{},
	}

	if h.monitor != nil {
		policy := h.monitor.Policy()
		response.Preferred = policy.Preferred()
		response.TextOrder = policy.Order(providers.OpNarrate)
		response.ImageOrder = policy.Order(providers.OpGenerateImage)
		response.Stats = h.monitor.Stats()
	}

	_ = utils.WriteOK(w, response)
}

func (h *HealthHandler) providerStatus() map[providers.ProviderID]bool {
	if h.monitor == nil {
		return map[providers.ProviderID]bool{}
	}
	return h.monitor.Registry().Status()
}

// checkStorage pings the database when there is one, otherwise asks the history store
func (h *HealthHandler) checkStorage(ctx context.Context) string {
	switch {
	case h.db != nil:
		if err := h.checkDatabase(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			return checkUnhealthy
		}
		return checkHealthy
	case h.history != nil:
		if _, err := h.history.Count(ctx); err != nil {
			h.logger.Warn("history health check failed", zap.Error(err))
			return checkUnhealthy
		}
		return checkHealthy
	default:
		return checkNotConfigured
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
