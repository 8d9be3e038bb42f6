// Package tracking talks to an MLflow-compatible tracking server over
// its REST API. The training loops treat it as a best-effort
// collaborator: every call failure is logged and swallowed by the
// caller, never turned into a job failure.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RunStatus mirrors the tracking server's run states
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
	RunStatusKilled   RunStatus = "KILLED"
)

// Run is a tracking run as seen by this service
type Run struct {
	ID           string
	ExperimentID string
	Name         string
	Status       RunStatus
	StartTime    int64
	EndTime      int64
	Metrics      map[string]float64
}

// Experiment is a tracking experiment as seen by this service
type Experiment struct {
	ID             string
	Name           string
	LifecycleStage string
	CreationTime   int64
	LastUpdateTime int64
	Tags           map[string]string
}

// Client is the tracking collaborator used by the training loops and the
// experiments API.
type Client interface {
	Ping(ctx context.Context) error
	CreateRun(ctx context.Context, experimentID, name string) (*Run, error)
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int) error
	SetTag(ctx context.Context, runID, key, value string) error
	EndRun(ctx context.Context, runID string, status RunStatus) error
	CreateExperiment(ctx context.Context, name string, tags map[string]string) (string, error)
	SearchExperiments(ctx context.Context) ([]Experiment, error)
	SearchRuns(ctx context.Context, experimentID string, maxResults int) ([]Run, error)
}

const apiPrefix = "/api/2.0/mlflow"

// HTTPClient implements Client against a real tracking server
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

// NewHTTPClient creates a client for the tracking server at baseURL.
// The request timeout is transport hygiene, not a job timeout.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping checks the tracking server health endpoint
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracking server unhealthy: %s", resp.Status)
	}
	return nil
}

type wireRunInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	RunName      string `json:"run_name"`
	Status       string `json:"status"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
}

type wireMetric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type wireParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wireRun struct {
	Info wireRunInfo `json:"info"`
	Data struct {
		Metrics []wireMetric `json:"metrics"`
		Params  []wireParam  `json:"params"`
	} `json:"data"`
}

func (w *wireRun) toRun() Run {
	run := Run{
		ID:           w.Info.RunID,
		ExperimentID: w.Info.ExperimentID,
		Name:         w.Info.RunName,
		Status:       RunStatus(w.Info.Status),
		StartTime:    w.Info.StartTime,
		EndTime:      w.Info.EndTime,
	}
	if len(w.Data.Metrics) > 0 {
		run.Metrics = make(map[string]float64, len(w.Data.Metrics))
		for _, m := range w.Data.Metrics {
			run.Metrics[m.Key] = m.Value
		}
	}
	return run
}

// CreateRun starts a new run under the given experiment
func (c *HTTPClient) CreateRun(ctx context.Context, experimentID, name string) (*Run, error) {
	body := map[string]interface{}{
		"experiment_id": experimentID,
		"run_name":      name,
		"start_time":    nowMillis(),
	}
	var out struct {
		Run wireRun `json:"run"`
	}
	if err := c.post(ctx, "/runs/create", body, &out); err != nil {
		return nil, err
	}
	run := out.Run.toRun()
	return &run, nil
}

// LogParams records run parameters in one batch
func (c *HTTPClient) LogParams(ctx context.Context, runID string, params map[string]string) error {
	wire := make([]wireParam, 0, len(params))
	for k, v := range params {
		wire = append(wire, wireParam{Key: k, Value: v})
	}
	body := map[string]interface{}{
		"run_id": runID,
		"params": wire,
	}
	return c.post(ctx, "/runs/log-batch", body, nil)
}

// LogMetrics records one step's metrics in one batch
func (c *HTTPClient) LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int) error {
	ts := nowMillis()
	wire := make([]wireMetric, 0, len(metrics))
	for k, v := range metrics {
		wire = append(wire, wireMetric{Key: k, Value: v, Timestamp: ts, Step: int64(step)})
	}
	body := map[string]interface{}{
		"run_id":  runID,
		"metrics": wire,
	}
	return c.post(ctx, "/runs/log-batch", body, nil)
}

// SetTag sets a single run tag
func (c *HTTPClient) SetTag(ctx context.Context, runID, key, value string) error {
	body := map[string]interface{}{
		"run_id": runID,
		"key":    key,
		"value":  value,
	}
	return c.post(ctx, "/runs/set-tag", body, nil)
}

// EndRun closes a run with the given terminal status
func (c *HTTPClient) EndRun(ctx context.Context, runID string, status RunStatus) error {
	body := map[string]interface{}{
		"run_id":   runID,
		"status":   string(status),
		"end_time": nowMillis(),
	}
	return c.post(ctx, "/runs/update", body, nil)
}

type wireTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateExperiment creates a named experiment and returns its id
func (c *HTTPClient) CreateExperiment(ctx context.Context, name string, tags map[string]string) (string, error) {
	body := map[string]interface{}{"name": name}
	if len(tags) > 0 {
		wire := make([]wireTag, 0, len(tags))
		for k, v := range tags {
			wire = append(wire, wireTag{Key: k, Value: v})
		}
		body["tags"] = wire
	}
	var out struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.post(ctx, "/experiments/create", body, &out); err != nil {
		return "", err
	}
	return out.ExperimentID, nil
}

// SearchExperiments lists experiments known to the tracking server
func (c *HTTPClient) SearchExperiments(ctx context.Context) ([]Experiment, error) {
	var out struct {
		Experiments []struct {
			ExperimentID   string    `json:"experiment_id"`
			Name           string    `json:"name"`
			LifecycleStage string    `json:"lifecycle_stage"`
			CreationTime   int64     `json:"creation_time"`
			LastUpdateTime int64     `json:"last_update_time"`
			Tags           []wireTag `json:"tags"`
		} `json:"experiments"`
	}
	if err := c.post(ctx, "/experiments/search", map[string]interface{}{"max_results": 1000}, &out); err != nil {
		return nil, err
	}
	experiments := make([]Experiment, 0, len(out.Experiments))
	for _, e := range out.Experiments {
		exp := Experiment{
			ID:             e.ExperimentID,
			Name:           e.Name,
			LifecycleStage: e.LifecycleStage,
			CreationTime:   e.CreationTime,
			LastUpdateTime: e.LastUpdateTime,
		}
		if len(e.Tags) > 0 {
			exp.Tags = make(map[string]string, len(e.Tags))
			for _, tag := range e.Tags {
				exp.Tags[tag.Key] = tag.Value
			}
		}
		experiments = append(experiments, exp)
	}
	return experiments, nil
}

// SearchRuns lists runs recorded under an experiment
func (c *HTTPClient) SearchRuns(ctx context.Context, experimentID string, maxResults int) ([]Run, error) {
	body := map[string]interface{}{
		"experiment_ids": []string{experimentID},
		"max_results":    maxResults,
	}
	var out struct {
		Runs []wireRun `json:"runs"`
	}
	if err := c.post(ctx, "/runs/search", body, &out); err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(out.Runs))
	for _, r := range out.Runs {
		runs = append(runs, r.toRun())
	}
	return runs, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("tracking %s: %s: %s", path, apiErr.ErrorCode, apiErr.Message)
		}
		return fmt.Errorf("tracking %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
