package models

import "time"

// TrainingJob represents a model training job submitted to the platform
type TrainingJob struct {
	ID              string
	Name            string
	ModelType       ModelType
	Framework       Framework
	Status          TrainingStatus
	Progress        float64 // 0-100
	CurrentEpoch    *int    // Set only after training starts
	TotalEpochs     int
	Metrics         map[string]float64 // Last-epoch snapshot
	BestMetrics     map[string]float64 // Highest-accuracy snapshot seen so far
	ModelArtifacts  []string
	LogsURL         *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *int
	CreatedBy       string
	Config          JobConfig
}

// JobConfig holds the training configuration captured at submission
type JobConfig struct {
	DatasetID       string
	Algorithm       string
	Hyperparameters map[string]interface{}
	TrainingConfig  map[string]interface{}
	ValidationSplit float64
	TestSplit       float64
	CrossValidation bool
	EarlyStopping   bool
	BatchSize       int
	LearningRate    float64
	Tags            []string
}

// TrainingStatus represents the current status of a training job
type TrainingStatus string

const (
	StatusQueued    TrainingStatus = "queued"
	StatusRunning   TrainingStatus = "running"
	StatusCompleted TrainingStatus = "completed"
	StatusFailed    TrainingStatus = "failed"
	StatusCancelled TrainingStatus = "cancelled"
)

// Terminal reports whether no further status transitions are possible
func (s TrainingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status value
func (s TrainingStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ModelType represents the type of model being trained
type ModelType string

const (
	ModelTypeClassification ModelType = "classification"
	ModelTypeRegression     ModelType = "regression"
	ModelTypeClustering     ModelType = "clustering"
	ModelTypeNLP            ModelType = "nlp"
	ModelTypeComputerVision ModelType = "computer_vision"
	ModelTypeTimeSeries     ModelType = "time_series"
)

// Valid reports whether m is a known model type
func (m ModelType) Valid() bool {
	switch m {
	case ModelTypeClassification, ModelTypeRegression, ModelTypeClustering,
		ModelTypeNLP, ModelTypeComputerVision, ModelTypeTimeSeries:
		return true
	}
	return false
}

// Framework represents the ML framework used for training
type Framework string

const (
	FrameworkSklearn    Framework = "sklearn"
	FrameworkTensorFlow Framework = "tensorflow"
	FrameworkPyTorch    Framework = "pytorch"
	FrameworkXGBoost    Framework = "xgboost"
	FrameworkLightGBM   Framework = "lightgbm"
)

// Valid reports whether f is a known framework
func (f Framework) Valid() bool {
	switch f {
	case FrameworkSklearn, FrameworkTensorFlow, FrameworkPyTorch,
		FrameworkXGBoost, FrameworkLightGBM:
		return true
	}
	return false
}

// Clone copies the job so callers can read a snapshot without observing
// later writes from the training loop. The fields the loop mutates
// (status, progress, epochs, metrics, artifacts, timestamps) are copied
// deeply; Config is fixed at submission and stays shared.
func (j *TrainingJob) Clone() *TrainingJob {
	c := *j
	if j.CurrentEpoch != nil {
		epoch := *j.CurrentEpoch
		c.CurrentEpoch = &epoch
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.DurationSeconds != nil {
		d := *j.DurationSeconds
		c.DurationSeconds = &d
	}
	if j.LogsURL != nil {
		u := *j.LogsURL
		c.LogsURL = &u
	}
	c.Metrics = copyMetrics(j.Metrics)
	c.BestMetrics = copyMetrics(j.BestMetrics)
	if j.ModelArtifacts != nil {
		c.ModelArtifacts = append([]string(nil), j.ModelArtifacts...)
	}
	return &c
}

func copyMetrics(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
