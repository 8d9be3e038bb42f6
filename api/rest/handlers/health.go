package handlers

import (
	"context"
	"net/http"
	"time"

	"model-training-service/tracking"
)

const serviceVersion = "1.0.0"

// HealthHandler reports service health and tracking-server reachability
type HealthHandler struct {
	tracker tracking.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tracker tracking.Client) *HealthHandler {
	return &HealthHandler{tracker: tracker}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	mlflowStatus := "healthy"
	overall := "healthy"
	if err := h.tracker.Ping(ctx); err != nil {
		mlflowStatus = "unhealthy"
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    overall,
		"service":   "model-training-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serviceVersion,
		"dependencies": map[string]string{
			"mlflow": mlflowStatus,
		},
	})
}
