package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeTemplateImported is published when a reviewed import has been
	// written to a template's sections.
	JobTypeTemplateImported JobType = "template_imported"
)

// ImportEvent describes an import applied to a template
type ImportEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	TemplateID    uuid.UUID `json:"template_id"`
	FileName      string    `json:"file_name"`
	SheetCount    int       `json:"sheet_count"`
	CategoryCount int       `json:"category_count"`
	FieldCount    int       `json:"field_count"`
	ImportedAt    time.Time `json:"imported_at"`
}

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID    `json:"id"`
	Type       JobType      `json:"type"`
	Import     *ImportEvent `json:"import,omitempty"`
	NotBefore  *time.Time   `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time   `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time    `json:"created_at"`
	RetryCount int          `json:"retry_count"`
	MaxRetries int          `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// NewTemplateImportedJob creates the job announcing an applied import
func NewTemplateImportedJob(event ImportEvent) *Job {
	job := NewJob(JobTypeTemplateImported)
	job.Import = &event
	return job
}

// Validate checks that the job carries the payload its type requires
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeTemplateImported:
		if j.Import == nil {
			return fmt.Errorf("%s job has no import payload", j.Type)
		}
		if j.Import.SessionID == uuid.Nil || j.Import.TemplateID == uuid.Nil {
			return fmt.Errorf("%s job requires session_id and template_id", j.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
