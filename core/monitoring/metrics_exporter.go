package monitoring

import (
	"fmt"
	"strings"

	"model-training-service/core/models"
	"model-training-service/core/registry"
)

// MetricsExporter exports service metrics in Prometheus text format
type MetricsExporter struct {
	jobs    *registry.JobRegistry
	tunings *registry.TuningRegistry
}

// NewMetricsExporter creates a new metrics exporter
func NewMetricsExporter(jobs *registry.JobRegistry, tunings *registry.TuningRegistry) *MetricsExporter {
	return &MetricsExporter{
		jobs:    jobs,
		tunings: tunings,
	}
}

var allStatuses = []models.TrainingStatus{
	models.StatusQueued,
	models.StatusRunning,
	models.StatusCompleted,
	models.StatusFailed,
	models.StatusCancelled,
}

// GetPrometheusMetrics returns metrics in Prometheus exposition format
func (me *MetricsExporter) GetPrometheusMetrics() string {
	var b strings.Builder

	b.WriteString("# HELP training_jobs_total Total number of training jobs\n")
	b.WriteString("# TYPE training_jobs_total gauge\n")
	fmt.Fprintf(&b, "training_jobs_total %d\n", me.jobs.Count(""))

	b.WriteString("# HELP training_jobs Number of training jobs by status\n")
	b.WriteString("# TYPE training_jobs gauge\n")
	for _, status := range allStatuses {
		fmt.Fprintf(&b, "training_jobs{status=%q} %d\n", status, me.jobs.Count(status))
	}

	epochs := 0
	b.WriteString("# HELP training_job_progress_percent Progress of running training jobs\n")
	b.WriteString("# TYPE training_job_progress_percent gauge\n")
	for _, job := range me.jobs.List(registry.JobFilter{}) {
		if job.CurrentEpoch != nil {
			epochs += *job.CurrentEpoch
		}
		if job.Status == models.StatusRunning {
			fmt.Fprintf(&b, "training_job_progress_percent{job_id=%q} %.1f\n", job.ID, job.Progress)
		}
	}

	b.WriteString("# HELP training_epochs_completed Epochs completed across all training jobs\n")
	b.WriteString("# TYPE training_epochs_completed gauge\n")
	fmt.Fprintf(&b, "training_epochs_completed %d\n", epochs)

	tunings := me.tunings.List()
	tuningByStatus := make(map[models.TrainingStatus]int)
	trials := 0
	for _, tuning := range tunings {
		tuningByStatus[tuning.Status]++
		trials += tuning.TrialsCompleted
	}

	b.WriteString("# HELP tuning_jobs_total Total number of tuning jobs\n")
	b.WriteString("# TYPE tuning_jobs_total gauge\n")
	fmt.Fprintf(&b, "tuning_jobs_total %d\n", len(tunings))

	b.WriteString("# HELP tuning_jobs Number of tuning jobs by status\n")
	b.WriteString("# TYPE tuning_jobs gauge\n")
	for _, status := range allStatuses {
		fmt.Fprintf(&b, "tuning_jobs{status=%q} %d\n", status, tuningByStatus[status])
	}

	b.WriteString("# HELP tuning_trials_completed Trials completed across all tuning jobs\n")
	b.WriteString("# TYPE tuning_trials_completed gauge\n")
	fmt.Fprintf(&b, "tuning_trials_completed %d\n", trials)

	return b.String()
}
