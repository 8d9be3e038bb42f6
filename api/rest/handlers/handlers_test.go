package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"model-training-service/core/executor"
	"model-training-service/core/registry"
	"model-training-service/core/runner"
	"model-training-service/core/tuner"
	"model-training-service/tracking"
)

// fakeTracker is an in-memory tracking.Client for handler tests.
type fakeTracker struct {
	mu          sync.Mutex
	pingErr     error
	searchErr   error
	experiments []tracking.Experiment
	runsByExp   map[string][]tracking.Run

	createdExperiments []string
	createdTags        map[string]string
}

func (f *fakeTracker) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeTracker) CreateRun(ctx context.Context, experimentID, name string) (*tracking.Run, error) {
	return &tracking.Run{ID: "run-1", ExperimentID: experimentID, Name: name, Status: tracking.RunStatusRunning}, nil
}

func (f *fakeTracker) LogParams(ctx context.Context, runID string, params map[string]string) error {
	return nil
}

func (f *fakeTracker) LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int) error {
	return nil
}

func (f *fakeTracker) SetTag(ctx context.Context, runID, key, value string) error { return nil }

func (f *fakeTracker) EndRun(ctx context.Context, runID string, status tracking.RunStatus) error {
	return nil
}

func (f *fakeTracker) CreateExperiment(ctx context.Context, name string, tags map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdExperiments = append(f.createdExperiments, name)
	f.createdTags = tags
	return "exp-9", nil
}

func (f *fakeTracker) SearchExperiments(ctx context.Context) ([]tracking.Experiment, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.experiments, nil
}

func (f *fakeTracker) SearchRuns(ctx context.Context, experimentID string, maxResults int) ([]tracking.Run, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.runsByExp[experimentID], nil
}

// testEnv wires the handlers against real registries and a real runner.
type testEnv struct {
	jobs    *registry.JobRegistry
	tunings *registry.TuningRegistry
	runner  *runner.Runner
	tracker *fakeTracker
	router  *mux.Router
}

// newTestEnv parks launched loops on hour-long delays so handler tests
// observe stable registry state; cleanup cancels them via the runner.
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithDelay(t, time.Hour)
}

func newTestEnvWithDelay(t *testing.T, delay time.Duration) *testEnv {
	t.Helper()

	jobs := registry.NewJobRegistry()
	tunings := registry.NewTuningRegistry()
	run := runner.NewRunner()
	tracker := &fakeTracker{}
	exec := executor.NewTrainingExecutor(jobs, tracker, executor.NewMetricsGenerator(1), delay, "0")
	tn := tuner.NewTuner(tunings, tuner.NewRandomSampler(1), delay)

	jobHandler := NewJobHandler(jobs, run, exec)
	tuningHandler := NewTuningHandler(tunings, jobs, run, tn)

	r := mux.NewRouter()
	r.HandleFunc("/v1/training/jobs", jobHandler.CreateJob).Methods("POST")
	r.HandleFunc("/v1/training/jobs", jobHandler.ListJobs).Methods("GET")
	r.HandleFunc("/v1/training/jobs/{id}", jobHandler.GetJob).Methods("GET")
	r.HandleFunc("/v1/training/jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST")
	r.HandleFunc("/v1/training/jobs/{id}/events", jobHandler.GetJobEvents).Methods("GET")
	r.HandleFunc("/v1/training/hyperparameter-tuning", tuningHandler.CreateTuning).Methods("POST")
	r.HandleFunc("/v1/training/hyperparameter-tuning/{id}", tuningHandler.GetTuning).Methods("GET")
	r.HandleFunc("/v1/training/hyperparameter-tuning/{id}/cancel", tuningHandler.CancelTuning).Methods("POST")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := run.Shutdown(ctx); err != nil {
			t.Errorf("runner shutdown: %v", err)
		}
	})

	return &testEnv{jobs: jobs, tunings: tunings, runner: run, tracker: tracker, router: r}
}

func (e *testEnv) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doRaw(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var body []map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"name":       "churn-model",
		"model_type": "classification",
		"framework":  "sklearn",
		"dataset_id": "ds-1",
		"algorithm":  "random_forest",
	}
}
