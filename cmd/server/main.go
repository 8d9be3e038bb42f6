package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model-training-service/api/rest/middleware"
	"model-training-service/api/rest/routes"
	"model-training-service/config"
	"model-training-service/core/executor"
	"model-training-service/core/monitoring"
	"model-training-service/core/registry"
	"model-training-service/core/runner"
	"model-training-service/core/tuner"
	"model-training-service/tracking"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize registries
	jobs := registry.NewJobRegistry()
	tunings := registry.NewTuningRegistry()

	// Initialize tracking client
	tracker := tracking.NewHTTPClient(cfg.TrackingURI)

	// Initialize training executor
	generator := executor.NewMetricsGenerator(time.Now().UnixNano())
	trainingExecutor := executor.NewTrainingExecutor(jobs, tracker, generator, cfg.EpochDuration, cfg.TrackingExperimentID)

	// Initialize hyperparameter tuner
	sampler := tuner.NewRandomSampler(time.Now().UnixNano())
	jobTuner := tuner.NewTuner(tunings, sampler, cfg.TrialDuration)

	// Initialize background loop runner
	loopRunner := runner.NewRunner()

	// Initialize monitoring
	exporter := monitoring.NewMetricsExporter(jobs, tunings)
	monitor := monitoring.NewJobMonitor(jobs, tunings, cfg.MonitorInterval)
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	go monitor.Start(monitorCtx)

	// Bearer auth is enabled only when a secret is configured
	var auth *middleware.Authenticator
	if cfg.AuthSecret != "" {
		auth = middleware.NewAuthenticator(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience)
		log.Println("Bearer token authentication enabled")
	}

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Deps{
		Jobs:     jobs,
		Tunings:  tunings,
		Runner:   loopRunner,
		Executor: trainingExecutor,
		Tuner:    jobTuner,
		Tracker:  tracker,
		Exporter: exporter,
		Auth:     auth,
	})

	handler := handlers.RecoveryHandler()(r)
	handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(handler)
	handler = handlers.LoggingHandler(os.Stdout, handler)

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: handler,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: HTTP server shutdown: %v", err)
	}
	if err := loopRunner.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: training loops did not drain in time: %v", err)
	}
	log.Println("Server exited")
}
