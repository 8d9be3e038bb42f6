package models

import (
	"encoding/json"
	"time"
)

// TuningJob represents a hyperparameter tuning job layered over a base
// training job. Each trial samples the parameter space and scores the
// candidate configuration; the highest-scoring trial's sampled
// parameters are kept as best.
type TuningJob struct {
	ID              string
	BaseJobID       string
	Status          TrainingStatus
	TrialsCompleted int
	MaxTrials       int
	BestTrial       map[string]interface{}
	BestScore       float64
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedBy       string
	Config          TuningConfig
}

// TuningConfig holds the tuning request captured at submission
type TuningConfig struct {
	TuningAlgorithm    string
	ParameterSpace     map[string]ParameterSpace
	ObjectiveMetric    string
	ObjectiveDirection string
	ParallelTrials     int
}

// SpaceKind identifies how a parameter search space is sampled
type SpaceKind string

const (
	SpaceCategorical SpaceKind = "categorical"
	SpaceUniform     SpaceKind = "uniform"
	SpaceInteger     SpaceKind = "int"
	SpaceUnknown     SpaceKind = "unknown"
)

// ParameterSpace describes the search space for a single hyperparameter.
// Two request payload shapes are recognized: a JSON array (categorical,
// uniform pick from the listed values) and an object with a "type" field
// (uniform: float in [low, high]; int: integer in [low, high)). Any other
// shape is retained but never sampled.
type ParameterSpace struct {
	Kind    SpaceKind
	Choices []interface{}
	Low     float64
	High    float64
}

// UnmarshalJSON classifies the search-space payload without rejecting
// unrecognized shapes.
func (p *ParameterSpace) UnmarshalJSON(data []byte) error {
	var choices []interface{}
	if err := json.Unmarshal(data, &choices); err == nil {
		p.Kind = SpaceCategorical
		p.Choices = choices
		return nil
	}

	var obj struct {
		Type string  `json:"type"`
		Low  float64 `json:"low"`
		High float64 `json:"high"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		switch obj.Type {
		case "uniform":
			p.Kind = SpaceUniform
		case "int":
			p.Kind = SpaceInteger
		default:
			p.Kind = SpaceUnknown
		}
		p.Low = obj.Low
		p.High = obj.High
		return nil
	}

	p.Kind = SpaceUnknown
	return nil
}

// MarshalJSON renders the space back in its request shape.
func (p ParameterSpace) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case SpaceCategorical:
		return json.Marshal(p.Choices)
	case SpaceUniform, SpaceInteger:
		return json.Marshal(map[string]interface{}{
			"type": string(p.Kind),
			"low":  p.Low,
			"high": p.High,
		})
	}
	return json.Marshal(nil)
}

// Clone copies the tuning job, isolating the fields the trial loop
// mutates (status, trial counts, best trial, timestamps). Config is
// fixed at submission and stays shared.
func (t *TuningJob) Clone() *TuningJob {
	c := *t
	if t.StartedAt != nil {
		at := *t.StartedAt
		c.StartedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.BestTrial != nil {
		c.BestTrial = make(map[string]interface{}, len(t.BestTrial))
		for k, v := range t.BestTrial {
			c.BestTrial[k] = v
		}
	}
	return &c
}
