package handlers

import (
	"log"
	"net/http"
	"time"

	"model-training-service/tracking"
)

// ExperimentHandler proxies experiment requests to the tracking server
type ExperimentHandler struct {
	tracker tracking.Client
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(tracker tracking.Client) *ExperimentHandler {
	return &ExperimentHandler{tracker: tracker}
}

// ListExperiments handles GET /v1/training/experiments
func (h *ExperimentHandler) ListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := h.tracker.SearchExperiments(r.Context())
	if err != nil {
		log.Printf("ERROR: failed to list experiments: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list experiments")
		return
	}

	items := make([]map[string]interface{}, 0, len(experiments))
	for _, exp := range experiments {
		runs, err := h.tracker.SearchRuns(r.Context(), exp.ID, 1000)
		if err != nil {
			log.Printf("ERROR: failed to list runs for experiment %s: %v", exp.ID, err)
			writeError(w, http.StatusInternalServerError, "Failed to list experiments")
			return
		}
		items = append(items, experimentResponse(exp, runs))
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateExperiment handles POST /v1/training/experiments
func (h *ExperimentHandler) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var description *string
	var tags map[string]string
	if d := query.Get("description"); d != "" {
		description = &d
		tags = map[string]string{"description": d}
	}

	experimentID, err := h.tracker.CreateExperiment(r.Context(), name, tags)
	if err != nil {
		log.Printf("ERROR: failed to create experiment: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create experiment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"experiment_id": experimentID,
		"name":          name,
		"description":   description,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	})
}

// experimentResponse aggregates an experiment and its runs into the
// shape clients expect: run count, best run by accuracy, and the best
// run's full metric set.
func experimentResponse(exp tracking.Experiment, runs []tracking.Run) map[string]interface{} {
	var bestRunID interface{}
	bestMetrics := map[string]float64{}
	var bestAccuracy float64
	var lastStart int64

	for _, run := range runs {
		if run.StartTime > lastStart {
			lastStart = run.StartTime
		}
		acc, ok := run.Metrics["accuracy"]
		if !ok {
			continue
		}
		if bestRunID == nil || acc > bestAccuracy {
			bestRunID = run.ID
			bestAccuracy = acc
			bestMetrics = run.Metrics
		}
	}

	var description interface{}
	if d, ok := exp.Tags["description"]; ok {
		description = d
	}
	var lastRunAt interface{}
	if lastStart > 0 {
		lastRunAt = time.UnixMilli(lastStart).UTC()
	}

	return map[string]interface{}{
		"id":           exp.ID,
		"name":         exp.Name,
		"description":  description,
		"runs_count":   len(runs),
		"best_run_id":  bestRunID,
		"best_metrics": bestMetrics,
		"created_at":   time.UnixMilli(exp.CreationTime).UTC(),
		"last_run_at":  lastRunAt,
	}
}
