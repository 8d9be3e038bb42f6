package models

import "time"

// JobEvent records a single status transition for a training or tuning job
type JobEvent struct {
	JobID      string
	At         time.Time
	FromStatus *TrainingStatus
	ToStatus   TrainingStatus
	Reason     string
}
