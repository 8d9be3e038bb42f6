// Package tuner runs hyperparameter search loops over registered
// training jobs.
package tuner

import (
	"context"
	"log"
	"time"

	"model-training-service/core/models"
	"model-training-service/core/registry"
)

// Tuner drives tuning jobs to a terminal status. Like the training
// executor, one tuner serves all jobs and each loop is the single
// writer for its job id.
type Tuner struct {
	registry   *registry.TuningRegistry
	sampler    TrialSampler
	trialDelay time.Duration
}

// NewTuner creates a new tuner
func NewTuner(reg *registry.TuningRegistry, sampler TrialSampler, trialDelay time.Duration) *Tuner {
	return &Tuner{
		registry:   reg,
		sampler:    sampler,
		trialDelay: trialDelay,
	}
}

// Run executes one tuning job's trial loop. Cancellation is observed at
// every trial boundary, the same discipline the training loop follows.
func (t *Tuner) Run(ctx context.Context, tuningID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: tuning job %s failed: %v", tuningID, r)
			if _, err := t.registry.Fail(tuningID); err != nil {
				log.Printf("ERROR: could not mark tuning job %s failed: %v", tuningID, err)
			}
		}
	}()

	job, err := t.registry.Get(tuningID)
	if err != nil {
		log.Printf("ERROR: tuning job %s not found: %v", tuningID, err)
		return
	}

	status, err := t.registry.MarkRunning(tuningID)
	if err != nil {
		log.Printf("ERROR: could not start tuning job %s: %v", tuningID, err)
		return
	}
	if status != models.StatusRunning {
		log.Printf("Tuning job %s skipped: status is %s", tuningID, status)
		return
	}
	log.Printf("Starting hyperparameter tuning %s for job %s (%d trials)", tuningID, job.BaseJobID, job.MaxTrials)

	for trial := 0; trial < job.MaxTrials; trial++ {
		current, err := t.registry.Get(tuningID)
		if err != nil {
			log.Printf("ERROR: tuning job %s lost: %v", tuningID, err)
			return
		}
		if current.Status == models.StatusCancelled {
			log.Printf("Tuning job %s was cancelled", tuningID)
			return
		}

		select {
		case <-ctx.Done():
			log.Printf("Tuning job %s interrupted by shutdown", tuningID)
			return
		case <-time.After(t.trialDelay):
		}

		params, err := t.sampler.SampleParams(job.Config.ParameterSpace)
		if err != nil {
			log.Printf("ERROR: tuning job %s: %v", tuningID, err)
			if _, err := t.registry.Fail(tuningID); err != nil {
				log.Printf("ERROR: could not mark tuning job %s failed: %v", tuningID, err)
			}
			return
		}
		score := t.sampler.SampleScore()

		status, err := t.registry.RecordTrial(tuningID, trial+1, score, params)
		if err != nil {
			log.Printf("ERROR: could not record trial for tuning job %s: %v", tuningID, err)
			return
		}
		if status != models.StatusRunning {
			log.Printf("Tuning job %s was cancelled", tuningID)
			return
		}
		log.Printf("Tuning %s trial %d/%d completed with score %.4f", tuningID, trial+1, job.MaxTrials, score)
	}

	if _, err := t.registry.Complete(tuningID); err != nil {
		log.Printf("ERROR: could not complete tuning job %s: %v", tuningID, err)
		return
	}
	final, err := t.registry.Get(tuningID)
	if err == nil && final.Status == models.StatusCompleted {
		log.Printf("Tuning job %s completed with best score %.4f", tuningID, final.BestScore)
	}
}
