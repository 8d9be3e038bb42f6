package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap"

	"model-training-service/core/models"
)

var (
	// ErrNotFound is returned when no job exists for the given id
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned when an operation is not valid for the job's current status
	ErrConflict = errors.New("job state conflict")
)

// eventTrailCap bounds the per-job transition trail
const eventTrailCap = 100

// JobFilter narrows List results. Zero values mean no filtering on that
// field; Limit <= 0 means no cap.
type JobFilter struct {
	Status    models.TrainingStatus
	ModelType models.ModelType
	Framework models.Framework
	Skip      int
	Limit     int
}

// JobRegistry is the in-memory store for training jobs. Jobs are kept in
// insertion order. All reads return deep copies so callers never observe
// a partially applied update; all writes happen under a single lock so
// each status transition or epoch record is atomic.
type JobRegistry struct {
	mu     sync.RWMutex
	jobs   *orderedmap.OrderedMap
	events map[string][]models.JobEvent
}

// NewJobRegistry creates an empty registry
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs:   orderedmap.NewOrderedMap(),
		events: make(map[string][]models.JobEvent),
	}
}

// Put registers a new job. The job id must be unused.
func (r *JobRegistry) Put(job *models.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs.Get(job.ID); ok {
		return ErrConflict
	}
	r.jobs.Set(job.ID, job.Clone())
	r.appendEvent(job.ID, nil, job.Status, "job_created")
	return nil
}

// Get returns a snapshot of the job with the given id
func (r *JobRegistry) Get(id string) (*models.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// List returns snapshots of jobs matching the filter, in submission order
func (r *JobRegistry) List(filter JobFilter) []*models.TrainingJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.TrainingJob, 0)
	for el := r.jobs.Front(); el != nil; el = el.Next() {
		job := el.Value.(*models.TrainingJob)
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.ModelType != "" && job.ModelType != filter.ModelType {
			continue
		}
		if filter.Framework != "" && job.Framework != filter.Framework {
			continue
		}
		matched = append(matched, job)
	}

	if filter.Skip >= len(matched) {
		return []*models.TrainingJob{}
	}
	matched = matched[filter.Skip:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*models.TrainingJob, len(matched))
	for i, job := range matched {
		out[i] = job.Clone()
	}
	return out
}

// Count returns the number of jobs currently in the given status. An
// empty status counts all jobs.
func (r *JobRegistry) Count(status models.TrainingStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if status == "" {
		return r.jobs.Len()
	}
	n := 0
	for el := r.jobs.Front(); el != nil; el = el.Next() {
		if el.Value.(*models.TrainingJob).Status == status {
			n++
		}
	}
	return n
}

// Events returns the transition history for a job, oldest first
func (r *JobRegistry) Events(id string) ([]models.JobEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.get(id); err != nil {
		return nil, err
	}
	events := r.events[id]
	out := make([]models.JobEvent, len(events))
	copy(out, events)
	return out, nil
}

// MarkRunning moves a queued job to running and stamps its start time.
// The returned status is the job's status after the call: a job already
// terminal (cancelled before it started) is left untouched.
func (r *JobRegistry) MarkRunning(id string) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status != models.StatusQueued {
		return job.Status, nil
	}

	from := job.Status
	now := time.Now().UTC()
	job.Status = models.StatusRunning
	job.StartedAt = &now
	r.appendEvent(id, &from, job.Status, "training_started")
	return job.Status, nil
}

// RecordEpoch applies the results of one completed epoch: current epoch,
// progress, latest metrics, and the best-metrics watermark (the first
// snapshot always becomes best, later ones replace it only when accuracy
// strictly improves). The update is a no-op on a terminal job; the
// returned status lets the caller observe a concurrent cancel.
func (r *JobRegistry) RecordEpoch(id string, epoch int, progress float64, metrics map[string]float64) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}

	snapshot := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		snapshot[k] = v
	}
	job.CurrentEpoch = &epoch
	job.Progress = progress
	job.Metrics = snapshot
	if len(job.BestMetrics) == 0 || snapshot["accuracy"] > job.BestMetrics["accuracy"] {
		best := make(map[string]float64, len(snapshot))
		for k, v := range snapshot {
			best[k] = v
		}
		job.BestMetrics = best
	}
	return job.Status, nil
}

// Complete moves a job to completed and records its artifacts and
// duration. A job that reached a terminal status first is left untouched.
func (r *JobRegistry) Complete(id string, artifacts []string) (models.TrainingStatus, error) {
	return r.finish(id, models.StatusCompleted, "training_completed", artifacts)
}

// Fail moves a job to failed. A job that reached a terminal status first
// is left untouched.
func (r *JobRegistry) Fail(id string) (models.TrainingStatus, error) {
	return r.finish(id, models.StatusFailed, "training_failed", nil)
}

func (r *JobRegistry) finish(id string, to models.TrainingStatus, reason string, artifacts []string) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}

	from := job.Status
	now := time.Now().UTC()
	job.Status = to
	job.CompletedAt = &now
	if job.StartedAt != nil {
		duration := int(now.Sub(*job.StartedAt).Seconds())
		job.DurationSeconds = &duration
	}
	if len(artifacts) > 0 {
		job.ModelArtifacts = append(job.ModelArtifacts, artifacts...)
	}
	r.appendEvent(id, &from, to, reason)
	return job.Status, nil
}

// Cancel requests cancellation of a queued or running job. The job moves
// to cancelled immediately; the training loop observes the new status at
// its next epoch boundary and stops. Cancelling a terminal job returns
// ErrConflict.
func (r *JobRegistry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return err
	}
	if job.Status != models.StatusQueued && job.Status != models.StatusRunning {
		return ErrConflict
	}

	from := job.Status
	now := time.Now().UTC()
	job.Status = models.StatusCancelled
	job.CompletedAt = &now
	r.appendEvent(id, &from, job.Status, "user_cancelled")
	return nil
}

func (r *JobRegistry) get(id string) (*models.TrainingJob, error) {
	v, ok := r.jobs.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*models.TrainingJob), nil
}

func (r *JobRegistry) appendEvent(id string, from *models.TrainingStatus, to models.TrainingStatus, reason string) {
	trail := append(r.events[id], models.JobEvent{
		JobID:      id,
		At:         time.Now().UTC(),
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
	})
	if len(trail) > eventTrailCap {
		trail = trail[len(trail)-eventTrailCap:]
	}
	r.events[id] = trail
}
