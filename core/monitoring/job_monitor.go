package monitoring

import (
	"context"
	"log"
	"time"

	"model-training-service/core/models"
	"model-training-service/core/registry"
)

// longRunningThreshold is how long a job may run before the monitor
// starts flagging it
const longRunningThreshold = 30 * time.Minute

// JobMonitor periodically observes running jobs and logs their health.
// It never mutates job state; loops own their jobs.
type JobMonitor struct {
	jobs     *registry.JobRegistry
	tunings  *registry.TuningRegistry
	interval time.Duration
}

// NewJobMonitor creates a new job monitor
func NewJobMonitor(jobs *registry.JobRegistry, tunings *registry.TuningRegistry, interval time.Duration) *JobMonitor {
	return &JobMonitor{
		jobs:     jobs,
		tunings:  tunings,
		interval: interval,
	}
}

// Start starts the monitoring loop
func (jm *JobMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jm.observe()
		}
	}
}

func (jm *JobMonitor) observe() {
	running := jm.jobs.List(registry.JobFilter{Status: models.StatusRunning})
	queued := jm.jobs.Count(models.StatusQueued)
	if len(running) > 0 || queued > 0 {
		log.Printf("Monitor: %d training jobs running, %d queued", len(running), queued)
	}

	now := time.Now().UTC()
	for _, job := range running {
		if job.StartedAt == nil {
			continue
		}
		elapsed := now.Sub(*job.StartedAt)
		if elapsed > longRunningThreshold {
			log.Printf("WARNING: training job %s has been running for %v (progress %.1f%%)",
				job.ID, elapsed.Round(time.Second), job.Progress)
		}
	}

	for _, tuning := range jm.tunings.List() {
		if tuning.Status != models.StatusRunning || tuning.StartedAt == nil {
			continue
		}
		elapsed := now.Sub(*tuning.StartedAt)
		if elapsed > longRunningThreshold {
			log.Printf("WARNING: tuning job %s has been running for %v (%d/%d trials)",
				tuning.ID, elapsed.Round(time.Second), tuning.TrialsCompleted, tuning.MaxTrials)
		}
	}
}
