package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// TranslationJob is the persisted status record for one upload. It is
// bookkeeping only: persistence failures never fail the pipeline.
type TranslationJob struct {
	ID            uuid.UUID
	UserID        string
	ContainerName string
	FileName      string
	Status        JobStatus
	Attempt       int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewTranslationJob(task TranslationTask) *TranslationJob {
	now := time.Now().UTC()
	return &TranslationJob{
		ID:            uuid.New(),
		UserID:        task.UserID,
		ContainerName: task.ContainerName,
		FileName:      task.FileName,
		Status:        JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (j *TranslationJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *TranslationJob) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *TranslationJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}
