package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"model-training-service/api/rest/middleware"
	"model-training-service/core/models"
	"model-training-service/core/registry"
	"model-training-service/core/runner"
	"model-training-service/core/tuner"
)

// TuningHandler handles hyperparameter-tuning HTTP requests
type TuningHandler struct {
	tunings *registry.TuningRegistry
	jobs    *registry.JobRegistry
	runner  *runner.Runner
	tuner   *tuner.Tuner
}

// NewTuningHandler creates a new tuning handler
func NewTuningHandler(tunings *registry.TuningRegistry, jobs *registry.JobRegistry, run *runner.Runner, tn *tuner.Tuner) *TuningHandler {
	return &TuningHandler{
		tunings: tunings,
		jobs:    jobs,
		runner:  run,
		tuner:   tn,
	}
}

// CreateTuningRequest is the tuning submission payload
type CreateTuningRequest struct {
	BaseJobID          string                           `json:"base_job_id"`
	TuningAlgorithm    string                           `json:"tuning_algorithm"`
	ParameterSpace     map[string]models.ParameterSpace `json:"parameter_space"`
	MaxTrials          *int                             `json:"max_trials"`
	ObjectiveMetric    string                           `json:"objective_metric"`
	ObjectiveDirection string                           `json:"objective_direction"`
	ParallelTrials     *int                             `json:"parallel_trials"`
}

// CreateTuning handles POST /v1/training/hyperparameter-tuning
func (h *TuningHandler) CreateTuning(w http.ResponseWriter, r *http.Request) {
	var req CreateTuningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BaseJobID == "" {
		writeError(w, http.StatusBadRequest, "base_job_id is required")
		return
	}
	if req.ParameterSpace == nil {
		writeError(w, http.StatusBadRequest, "parameter_space is required")
		return
	}

	// No record is created for an unknown base job.
	if _, err := h.jobs.Get(req.BaseJobID); err != nil {
		writeError(w, http.StatusNotFound, "Base training job not found")
		return
	}

	job := &models.TuningJob{
		ID:        uuid.New().String(),
		BaseJobID: req.BaseJobID,
		Status:    models.StatusQueued,
		MaxTrials: intOr(req.MaxTrials, 50),
		CreatedAt: time.Now().UTC(),
		CreatedBy: middleware.SubjectFromContext(r.Context()),
		Config: models.TuningConfig{
			TuningAlgorithm:    stringOr(req.TuningAlgorithm, "random"),
			ParameterSpace:     req.ParameterSpace,
			ObjectiveMetric:    stringOr(req.ObjectiveMetric, "accuracy"),
			ObjectiveDirection: stringOr(req.ObjectiveDirection, "maximize"),
			ParallelTrials:     intOr(req.ParallelTrials, 4),
		},
	}

	if err := h.tunings.Put(job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start hyperparameter tuning")
		return
	}
	if _, err := h.runner.Launch(job.ID, func(ctx context.Context) {
		h.tuner.Run(ctx, job.ID)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start hyperparameter tuning")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tuning_job_id": job.ID,
		"message":       "Hyperparameter tuning started",
		"max_trials":    job.MaxTrials,
	})
}

// GetTuning handles GET /v1/training/hyperparameter-tuning/{id}
func (h *TuningHandler) GetTuning(w http.ResponseWriter, r *http.Request) {
	job, err := h.tunings.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Tuning job not found")
		return
	}
	writeJSON(w, http.StatusOK, tuningResponse(job))
}

// CancelTuning handles POST /v1/training/hyperparameter-tuning/{id}/cancel
func (h *TuningHandler) CancelTuning(w http.ResponseWriter, r *http.Request) {
	err := h.tunings.Cancel(mux.Vars(r)["id"])
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Tuning job not found")
		return
	}
	if errors.Is(err, registry.ErrConflict) {
		writeError(w, http.StatusConflict, "Cannot cancel tuning job in current status")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel tuning job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tuning job cancelled successfully"})
}

func tuningResponse(job *models.TuningJob) map[string]interface{} {
	return map[string]interface{}{
		"id":               job.ID,
		"base_job_id":      job.BaseJobID,
		"status":           job.Status,
		"trials_completed": job.TrialsCompleted,
		"max_trials":       job.MaxTrials,
		"best_trial":       job.BestTrial,
		"best_score":       job.BestScore,
		"created_at":       job.CreatedAt,
		"started_at":       job.StartedAt,
		"completed_at":     job.CompletedAt,
		"created_by":       job.CreatedBy,
		"config": map[string]interface{}{
			"base_job_id":         job.BaseJobID,
			"tuning_algorithm":    job.Config.TuningAlgorithm,
			"parameter_space":     job.Config.ParameterSpace,
			"max_trials":          job.MaxTrials,
			"objective_metric":    job.Config.ObjectiveMetric,
			"objective_direction": job.Config.ObjectiveDirection,
			"parallel_trials":     job.Config.ParallelTrials,
		},
	}
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
