package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"model-training-service/api/rest/middleware"
	"model-training-service/core/executor"
	"model-training-service/core/models"
	"model-training-service/core/registry"
	"model-training-service/core/runner"
)

// JobHandler handles training-job HTTP requests
type JobHandler struct {
	registry *registry.JobRegistry
	runner   *runner.Runner
	executor *executor.TrainingExecutor
}

// NewJobHandler creates a new job handler
func NewJobHandler(reg *registry.JobRegistry, run *runner.Runner, exec *executor.TrainingExecutor) *JobHandler {
	return &JobHandler{
		registry: reg,
		runner:   run,
		executor: exec,
	}
}

// CreateTrainingJobRequest is the submission payload. Optional fields
// are pointers so an absent field and an explicit zero stay distinct.
type CreateTrainingJobRequest struct {
	Name            string                 `json:"name"`
	ModelType       string                 `json:"model_type"`
	Framework       string                 `json:"framework"`
	DatasetID       string                 `json:"dataset_id"`
	Algorithm       string                 `json:"algorithm"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	TrainingConfig  map[string]interface{} `json:"training_config"`
	ValidationSplit *float64               `json:"validation_split"`
	TestSplit       *float64               `json:"test_split"`
	CrossValidation *bool                  `json:"cross_validation"`
	EarlyStopping   *bool                  `json:"early_stopping"`
	MaxEpochs       *int                   `json:"max_epochs"`
	BatchSize       *int                   `json:"batch_size"`
	LearningRate    *float64               `json:"learning_rate"`
	Tags            []string               `json:"tags"`
}

// CreateJob handles POST /v1/training/jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateTrainingJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.DatasetID == "" || req.Algorithm == "" {
		writeError(w, http.StatusBadRequest, "name, dataset_id and algorithm are required")
		return
	}
	modelType := models.ModelType(req.ModelType)
	if !modelType.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid model_type: "+req.ModelType)
		return
	}
	framework := models.Framework(req.Framework)
	if !framework.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid framework: "+req.Framework)
		return
	}

	job := &models.TrainingJob{
		ID:          uuid.New().String(),
		Name:        req.Name,
		ModelType:   modelType,
		Framework:   framework,
		Status:      models.StatusQueued,
		TotalEpochs: intOr(req.MaxEpochs, 100),
		Metrics:     map[string]float64{},
		BestMetrics: map[string]float64{},
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   middleware.SubjectFromContext(r.Context()),
		Config: models.JobConfig{
			DatasetID:       req.DatasetID,
			Algorithm:       req.Algorithm,
			Hyperparameters: req.Hyperparameters,
			TrainingConfig:  req.TrainingConfig,
			ValidationSplit: floatOr(req.ValidationSplit, 0.2),
			TestSplit:       floatOr(req.TestSplit, 0.1),
			CrossValidation: boolOr(req.CrossValidation, false),
			EarlyStopping:   boolOr(req.EarlyStopping, true),
			BatchSize:       intOr(req.BatchSize, 32),
			LearningRate:    floatOr(req.LearningRate, 0.001),
			Tags:            req.Tags,
		},
	}

	if err := h.registry.Put(job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create training job")
		return
	}
	if _, err := h.runner.Launch(job.ID, func(ctx context.Context) {
		h.executor.Run(ctx, job.ID)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start training job")
		return
	}

	writeJSON(w, http.StatusCreated, jobResponse(job))
}

// GetJob handles GET /v1/training/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Training job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

// ListJobs handles GET /v1/training/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := registry.JobFilter{Limit: 100}

	if s := query.Get("status"); s != "" {
		status := models.TrainingStatus(s)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status: "+s)
			return
		}
		filter.Status = status
	}
	if s := query.Get("model_type"); s != "" {
		modelType := models.ModelType(s)
		if !modelType.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid model_type: "+s)
			return
		}
		filter.ModelType = modelType
	}
	if s := query.Get("framework"); s != "" {
		framework := models.Framework(s)
		if !framework.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid framework: "+s)
			return
		}
		filter.Framework = framework
	}
	if s := query.Get("skip"); s != "" {
		skip, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid skip: "+s)
			return
		}
		if skip > 0 {
			filter.Skip = skip
		}
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit: "+s)
			return
		}
		// A non-positive limit would disable the cap, so it keeps the default.
		if limit > 0 {
			filter.Limit = limit
		}
	}

	jobs := h.registry.List(filter)
	items := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		items[i] = jobResponse(job)
	}
	writeJSON(w, http.StatusOK, items)
}

// CancelJob handles POST /v1/training/jobs/{id}/cancel
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	err := h.registry.Cancel(mux.Vars(r)["id"])
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Training job not found")
		return
	}
	if errors.Is(err, registry.ErrConflict) {
		writeError(w, http.StatusConflict, "Cannot cancel job in current status")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel training job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Training job cancelled successfully"})
}

// GetJobEvents handles GET /v1/training/jobs/{id}/events
func (h *JobHandler) GetJobEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.registry.Events(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Training job not found")
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, event := range events {
		item := map[string]interface{}{
			"at":        event.At,
			"to_status": event.ToStatus,
			"reason":    event.Reason,
		}
		if event.FromStatus != nil {
			item["from_status"] = *event.FromStatus
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func jobResponse(job *models.TrainingJob) map[string]interface{} {
	metrics := job.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	best := job.BestMetrics
	if best == nil {
		best = map[string]float64{}
	}
	artifacts := job.ModelArtifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	return map[string]interface{}{
		"id":               job.ID,
		"name":             job.Name,
		"model_type":       job.ModelType,
		"framework":        job.Framework,
		"status":           job.Status,
		"progress":         job.Progress,
		"current_epoch":    job.CurrentEpoch,
		"total_epochs":     job.TotalEpochs,
		"metrics":          metrics,
		"best_metrics":     best,
		"model_artifacts":  artifacts,
		"logs_url":         job.LogsURL,
		"created_at":       job.CreatedAt,
		"started_at":       job.StartedAt,
		"completed_at":     job.CompletedAt,
		"duration_seconds": job.DurationSeconds,
		"created_by":       job.CreatedBy,
	}
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}
