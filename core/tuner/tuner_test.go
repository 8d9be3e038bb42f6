package tuner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"model-training-service/core/models"
	"model-training-service/core/registry"
)

type stubSampler struct {
	scores  []float64
	idx     int
	onTrial func(trial int)
}

func (s *stubSampler) SampleParams(space map[string]models.ParameterSpace) (map[string]interface{}, error) {
	if s.onTrial != nil {
		s.onTrial(s.idx)
	}
	// A distinct candidate per trial so the surviving best is traceable.
	return map[string]interface{}{"n_estimators": 50 * (s.idx + 1)}, nil
}

func (s *stubSampler) SampleScore() float64 {
	v := s.scores[s.idx%len(s.scores)]
	s.idx++
	return v
}

func queuedTuning(id string, maxTrials int) *models.TuningJob {
	return &models.TuningJob{
		ID:        id,
		BaseJobID: "base-1",
		Status:    models.StatusQueued,
		MaxTrials: maxTrials,
		CreatedAt: time.Now().UTC(),
		Config: models.TuningConfig{
			TuningAlgorithm: "random",
			ParameterSpace: map[string]models.ParameterSpace{
				"learning_rate": {Kind: models.SpaceUniform, Low: 0.001, High: 0.1},
			},
			ObjectiveMetric:    "accuracy",
			ObjectiveDirection: "maximize",
			ParallelTrials:     4,
		},
	}
}

func TestTunerRunCompletes(t *testing.T) {
	reg := registry.NewTuningRegistry()
	sampler := &stubSampler{scores: []float64{0.8, 0.75, 0.9, 0.85}}
	tn := NewTuner(reg, sampler, time.Millisecond)

	_ = reg.Put(queuedTuning("t1", 4))
	tn.Run(context.Background(), "t1")

	job, err := reg.Get("t1")
	assert.Nil(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, 4, job.TrialsCompleted)
	assert.Equal(t, 0.9, job.BestScore)
	// The third trial scored highest, so its candidate is kept.
	assert.Equal(t, map[string]interface{}{"n_estimators": 150}, job.BestTrial)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestTunerStopsAtCancellation(t *testing.T) {
	reg := registry.NewTuningRegistry()
	sampler := &stubSampler{scores: []float64{0.8, 0.9, 0.95}}
	sampler.onTrial = func(trial int) {
		if trial == 1 {
			_ = reg.Cancel("t1")
		}
	}
	tn := NewTuner(reg, sampler, time.Millisecond)

	_ = reg.Put(queuedTuning("t1", 3))
	tn.Run(context.Background(), "t1")

	job, _ := reg.Get("t1")
	assert.Equal(t, models.StatusCancelled, job.Status)
	assert.Equal(t, 1, job.TrialsCompleted)
	assert.Equal(t, 0.8, job.BestScore)
	assert.Equal(t, map[string]interface{}{"n_estimators": 50}, job.BestTrial)
	assert.NotNil(t, job.CompletedAt)
}

func TestTunerSkipsJobCancelledBeforeStart(t *testing.T) {
	reg := registry.NewTuningRegistry()
	tn := NewTuner(reg, &stubSampler{scores: []float64{0.8}}, time.Millisecond)

	_ = reg.Put(queuedTuning("t1", 3))
	_ = reg.Cancel("t1")
	tn.Run(context.Background(), "t1")

	job, _ := reg.Get("t1")
	assert.Equal(t, models.StatusCancelled, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, 0, job.TrialsCompleted)
}

func TestTunerSamplingErrorFailsJob(t *testing.T) {
	reg := registry.NewTuningRegistry()
	tn := NewTuner(reg, NewRandomSampler(1), time.Millisecond)

	job := queuedTuning("t1", 3)
	job.Config.ParameterSpace = map[string]models.ParameterSpace{
		"broken": {Kind: models.SpaceCategorical},
	}
	_ = reg.Put(job)
	tn.Run(context.Background(), "t1")

	got, _ := reg.Get("t1")
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 0, got.TrialsCompleted)
}

func TestTunerZeroTrials(t *testing.T) {
	reg := registry.NewTuningRegistry()
	tn := NewTuner(reg, &stubSampler{scores: []float64{0.8}}, time.Millisecond)

	_ = reg.Put(queuedTuning("t1", 0))
	tn.Run(context.Background(), "t1")

	job, _ := reg.Get("t1")
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, 0, job.TrialsCompleted)
	assert.Equal(t, float64(0), job.BestScore)
	assert.Nil(t, job.BestTrial)
}

func TestTunerStopsOnContextCancel(t *testing.T) {
	reg := registry.NewTuningRegistry()
	tn := NewTuner(reg, &stubSampler{scores: []float64{0.8}}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = reg.Put(queuedTuning("t1", 3))
	tn.Run(ctx, "t1")

	job, _ := reg.Get("t1")
	assert.Equal(t, models.StatusRunning, job.Status)
	assert.Equal(t, 0, job.TrialsCompleted)
}
