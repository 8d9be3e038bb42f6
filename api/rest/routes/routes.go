package routes

import (
	"time"

	"github.com/gorilla/mux"

	"model-training-service/api/rest/handlers"
	"model-training-service/api/rest/middleware"
	"model-training-service/core/executor"
	"model-training-service/core/monitoring"
	"model-training-service/core/registry"
	"model-training-service/core/runner"
	"model-training-service/core/tuner"
	"model-training-service/tracking"
)

// Deps carries everything the route handlers need
type Deps struct {
	Jobs     *registry.JobRegistry
	Tunings  *registry.TuningRegistry
	Runner   *runner.Runner
	Executor *executor.TrainingExecutor
	Tuner    *tuner.Tuner
	Tracker  tracking.Client
	Exporter *monitoring.MetricsExporter
	Auth     *middleware.Authenticator // nil disables bearer auth
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, deps Deps) {
	jobHandler := handlers.NewJobHandler(deps.Jobs, deps.Runner, deps.Executor)
	tuningHandler := handlers.NewTuningHandler(deps.Tunings, deps.Jobs, deps.Runner, deps.Tuner)
	experimentHandler := handlers.NewExperimentHandler(deps.Tracker)
	evaluateHandler := handlers.NewEvaluateHandler(time.Now().UnixNano())
	healthHandler := handlers.NewHealthHandler(deps.Tracker)
	metricsHandler := handlers.NewMetricsHandler(deps.Exporter)

	// Operational endpoints stay outside auth
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler.Metrics).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	if deps.Auth != nil {
		api.Use(deps.Auth.Middleware)
	}

	// Training job endpoints
	api.HandleFunc("/training/jobs", jobHandler.CreateJob).Methods("POST")
	api.HandleFunc("/training/jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/training/jobs/{id}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/training/jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST")
	api.HandleFunc("/training/jobs/{id}/events", jobHandler.GetJobEvents).Methods("GET")

	// Hyperparameter tuning endpoints
	api.HandleFunc("/training/hyperparameter-tuning", tuningHandler.CreateTuning).Methods("POST")
	api.HandleFunc("/training/hyperparameter-tuning/{id}", tuningHandler.GetTuning).Methods("GET")
	api.HandleFunc("/training/hyperparameter-tuning/{id}/cancel", tuningHandler.CancelTuning).Methods("POST")

	// Experiment endpoints
	api.HandleFunc("/training/experiments", experimentHandler.ListExperiments).Methods("GET")
	api.HandleFunc("/training/experiments", experimentHandler.CreateExperiment).Methods("POST")

	// Evaluation endpoint
	api.HandleFunc("/training/evaluate", evaluateHandler.Evaluate).Methods("POST")
}
