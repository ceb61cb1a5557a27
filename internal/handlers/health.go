package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agarciaarin-ops/SCUMM-AI/internal/services"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	store  services.SessionStore
	logger *slog.Logger
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func NewHealthHandler(store services.SessionStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{Status: "ok", Store: "ok"}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Health check: store unreachable", "error", err)
		resp.Status = "degraded"
		resp.Store = "unreachable"
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Error encoding health response", "error", err)
	}
}
