package handlers

import (
	"net/http"

	"model-training-service/core/monitoring"
)

// MetricsHandler serves Prometheus metrics
type MetricsHandler struct {
	exporter *monitoring.MetricsExporter
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(exporter *monitoring.MetricsExporter) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// Metrics handles GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(h.exporter.GetPrometheusMetrics()))
}
