package handlers

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// EvaluateHandler serves mock model evaluations. Real model loading and
// scoring live outside this service; the endpoint exists so clients can
// integrate against a stable shape.
type EvaluateHandler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEvaluateHandler creates an evaluate handler seeded with the given value
func NewEvaluateHandler(seed int64) *EvaluateHandler {
	return &EvaluateHandler{rng: rand.New(rand.NewSource(seed))}
}

// Evaluate handles POST /v1/training/evaluate
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	modelID := query.Get("model_id")
	datasetID := query.Get("dataset_id")
	if modelID == "" || datasetID == "" {
		writeError(w, http.StatusBadRequest, "model_id and dataset_id are required")
		return
	}

	h.mu.Lock()
	metrics := map[string]float64{
		"accuracy":  0.8 + h.rng.Float64()*0.15,
		"precision": 0.75 + h.rng.Float64()*0.15,
		"recall":    0.7 + h.rng.Float64()*0.18,
		"f1_score":  0.72 + h.rng.Float64()*0.17,
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_id":         modelID,
		"dataset_id":       datasetID,
		"metrics":          metrics,
		"confusion_matrix": [][]int{{85, 5}, {10, 90}},
		"evaluation_time":  time.Now().UTC().Format(time.RFC3339),
		"sample_predictions": []map[string]interface{}{
			{"input": "sample_1", "predicted": "class_a", "actual": "class_a", "confidence": 0.92},
			{"input": "sample_2", "predicted": "class_b", "actual": "class_b", "confidence": 0.87},
		},
	})
}
