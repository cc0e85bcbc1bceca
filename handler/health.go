package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/go-chi/chi/v5"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	router *chi.Mux
}

// NewHealthHandler reports on the given dependencies. Disabled dependencies
// are simply left out.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	h := &HealthHandler{
		checks: checks,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleDependencies)

	h.router = r
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

// HandleLiveness godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  models.BaseResponse
// @Router       /health [get]
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   common.AppName,
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// handleDependencies godoc
// @Summary      Dependency health
// @Tags         health
// @Produce      json
// @Success      200  {object}  models.BaseResponse
// @Failure      503  {object}  models.BaseResponse
// @Router       /v1/health [get]
func (h *HealthHandler) handleDependencies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			continue
		}
		deps[name] = map[string]interface{}{"status": "healthy"}
	}

	response := map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"dependencies": deps,
	}
	if status != http.StatusOK {
		response["status"] = "unhealthy"
	}

	utils.WriteJSON(w, status, response)
}
