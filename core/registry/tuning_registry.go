package registry

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap"

	"model-training-service/core/models"
)

// TuningRegistry is the in-memory store for hyperparameter tuning jobs.
// It follows the same locking and snapshot discipline as JobRegistry.
type TuningRegistry struct {
	mu   sync.RWMutex
	jobs *orderedmap.OrderedMap
}

// NewTuningRegistry creates an empty registry
func NewTuningRegistry() *TuningRegistry {
	return &TuningRegistry{jobs: orderedmap.NewOrderedMap()}
}

// Put registers a new tuning job. The job id must be unused.
func (r *TuningRegistry) Put(job *models.TuningJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs.Get(job.ID); ok {
		return ErrConflict
	}
	r.jobs.Set(job.ID, job.Clone())
	return nil
}

// Get returns a snapshot of the tuning job with the given id
func (r *TuningRegistry) Get(id string) (*models.TuningJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// List returns snapshots of all tuning jobs in submission order
func (r *TuningRegistry) List() []*models.TuningJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.TuningJob, 0, r.jobs.Len())
	for el := r.jobs.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*models.TuningJob).Clone())
	}
	return out
}

// MarkRunning moves a queued tuning job to running. The returned status
// is the status after the call; a job cancelled before starting is left
// untouched.
func (r *TuningRegistry) MarkRunning(id string) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status != models.StatusQueued {
		return job.Status, nil
	}
	now := time.Now().UTC()
	job.Status = models.StatusRunning
	job.StartedAt = &now
	return job.Status, nil
}

// RecordTrial applies the results of one completed trial: the trial
// counter and, when the score strictly beats the current best, the best
// score together with the trial's sampled parameters. No-op on a
// terminal job.
func (r *TuningRegistry) RecordTrial(id string, completed int, score float64, params map[string]interface{}) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}

	job.TrialsCompleted = completed
	if score > job.BestScore {
		job.BestScore = score
		best := make(map[string]interface{}, len(params))
		for k, v := range params {
			best[k] = v
		}
		job.BestTrial = best
	}
	return job.Status, nil
}

// Complete moves a tuning job to completed. A job already terminal is
// left untouched.
func (r *TuningRegistry) Complete(id string) (models.TrainingStatus, error) {
	return r.finish(id, models.StatusCompleted)
}

// Fail moves a tuning job to failed. A job already terminal is left
// untouched.
func (r *TuningRegistry) Fail(id string) (models.TrainingStatus, error) {
	return r.finish(id, models.StatusFailed)
}

func (r *TuningRegistry) finish(id string, to models.TrainingStatus) (models.TrainingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}
	now := time.Now().UTC()
	job.Status = to
	job.CompletedAt = &now
	return job.Status, nil
}

// Cancel requests cancellation of a queued or running tuning job. The
// trial loop observes the new status at its next trial boundary.
func (r *TuningRegistry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.get(id)
	if err != nil {
		return err
	}
	if job.Status != models.StatusQueued && job.Status != models.StatusRunning {
		return ErrConflict
	}
	now := time.Now().UTC()
	job.Status = models.StatusCancelled
	job.CompletedAt = &now
	return nil
}

func (r *TuningRegistry) get(id string) (*models.TuningJob, error) {
	v, ok := r.jobs.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*models.TuningJob), nil
}
