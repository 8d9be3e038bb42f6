package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"model-training-service/core/models"
	"model-training-service/core/registry"
	"model-training-service/tracking"
	"model-training-service/training/frameworks"
)

// TrainingExecutor drives training jobs to a terminal status. One
// executor serves all jobs; each job's loop runs on its own goroutine
// and is the only writer for that job id.
type TrainingExecutor struct {
	registry     *registry.JobRegistry
	tracker      tracking.Client
	generator    MetricsGenerator
	epochDelay   time.Duration
	experimentID string
}

// NewTrainingExecutor creates a new training executor
func NewTrainingExecutor(reg *registry.JobRegistry, tracker tracking.Client, generator MetricsGenerator, epochDelay time.Duration, experimentID string) *TrainingExecutor {
	return &TrainingExecutor{
		registry:     reg,
		tracker:      tracker,
		generator:    generator,
		epochDelay:   epochDelay,
		experimentID: experimentID,
	}
}

// Run executes one job's training loop. Cancellation is cooperative:
// the loop checks the job status at every epoch boundary and stops
// without further writes once it sees cancelled. A panic anywhere in
// the loop marks the job failed; nothing propagates to the caller.
func (e *TrainingExecutor) Run(ctx context.Context, jobID string) {
	var runID string
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: training job %s failed: %v", jobID, r)
			status, err := e.registry.Fail(jobID)
			if err != nil {
				log.Printf("ERROR: could not mark job %s failed: %v", jobID, err)
				return
			}
			if status == models.StatusFailed {
				e.endRun(runID, tracking.RunStatusFailed)
			}
		}
	}()

	job, err := e.registry.Get(jobID)
	if err != nil {
		log.Printf("ERROR: training job %s not found: %v", jobID, err)
		return
	}

	status, err := e.registry.MarkRunning(jobID)
	if err != nil {
		log.Printf("ERROR: could not start job %s: %v", jobID, err)
		return
	}
	if status != models.StatusRunning {
		log.Printf("Training job %s skipped: status is %s", jobID, status)
		return
	}
	log.Printf("Starting training job %s (%s, %s, %d epochs)", jobID, job.ModelType, job.Framework, job.TotalEpochs)

	runID = e.startRun(ctx, job)

	for epoch := 0; epoch < job.TotalEpochs; epoch++ {
		current, err := e.registry.Get(jobID)
		if err != nil {
			log.Printf("ERROR: training job %s lost: %v", jobID, err)
			return
		}
		if current.Status == models.StatusCancelled {
			log.Printf("Training job %s was cancelled", jobID)
			e.endRun(runID, tracking.RunStatusKilled)
			return
		}

		select {
		case <-ctx.Done():
			log.Printf("Training job %s interrupted by shutdown", jobID)
			return
		case <-time.After(e.epochDelay):
		}

		metrics := e.generator.Epoch(epoch, job.TotalEpochs)
		progress := float64(epoch+1) / float64(job.TotalEpochs) * 100
		status, err := e.registry.RecordEpoch(jobID, epoch+1, progress, metrics.Map())
		if err != nil {
			log.Printf("ERROR: could not record epoch for job %s: %v", jobID, err)
			return
		}
		if status != models.StatusRunning {
			log.Printf("Training job %s was cancelled", jobID)
			e.endRun(runID, tracking.RunStatusKilled)
			return
		}

		if runID != "" {
			if err := e.tracker.LogMetrics(ctx, runID, metrics.Map(), epoch); err != nil {
				log.Printf("WARNING: failed to log metrics for job %s: %v", jobID, err)
			}
		}
	}

	var artifacts []string
	if profile, err := frameworks.ProfileFor(job.Framework); err == nil && profile.ProducesModelArtifact && runID != "" {
		ref := frameworks.ArtifactRef(runID)
		artifacts = append(artifacts, ref)
		if err := e.tracker.SetTag(ctx, runID, "model_uri", ref); err != nil {
			log.Printf("WARNING: failed to tag model for job %s: %v", jobID, err)
		}
	}

	status, err = e.registry.Complete(jobID, artifacts)
	if err != nil {
		log.Printf("ERROR: could not complete job %s: %v", jobID, err)
		return
	}
	if status == models.StatusCompleted {
		e.endRun(runID, tracking.RunStatusFinished)
		log.Printf("Training job %s completed", jobID)
	} else {
		// Cancelled between the last epoch and completion.
		e.endRun(runID, tracking.RunStatusKilled)
		log.Printf("Training job %s was cancelled", jobID)
	}
}

// startRun opens a tracking run and logs the job's parameters. Tracking
// being down is not a job failure; an empty run id disables the
// remaining tracking calls for this job.
func (e *TrainingExecutor) startRun(ctx context.Context, job *models.TrainingJob) string {
	run, err := e.tracker.CreateRun(ctx, e.experimentID, job.Name)
	if err != nil {
		log.Printf("WARNING: failed to start tracking run for job %s: %v", job.ID, err)
		return ""
	}

	params := map[string]string{
		"model_type": string(job.ModelType),
		"framework":  string(job.Framework),
		"algorithm":  job.Config.Algorithm,
	}
	for k, v := range job.Config.Hyperparameters {
		params[k] = fmt.Sprintf("%v", v)
	}
	if err := e.tracker.LogParams(ctx, run.ID, params); err != nil {
		log.Printf("WARNING: failed to log params for job %s: %v", job.ID, err)
	}
	return run.ID
}

func (e *TrainingExecutor) endRun(runID string, status tracking.RunStatus) {
	if runID == "" {
		return
	}
	// Detached from the loop context so the terminal status still lands
	// during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tracker.EndRun(ctx, runID, status); err != nil {
		log.Printf("WARNING: failed to end tracking run %s: %v", runID, err)
	}
}
