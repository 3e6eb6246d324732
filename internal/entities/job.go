package entities

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether the status is final. Only non-terminal jobs
// block the scheduler from enqueuing another one for the same integration.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

type JobTrigger string

const (
	JobTriggerCron   JobTrigger = "cron"
	JobTriggerManual JobTrigger = "manual"
)

// IngestionJob is one unit of sync work for a single integration. Jobs are
// created by the scheduler, claimed and completed by workers, and kept
// around after finishing as history.
//
// At most one job per integration may be in a non-terminal status at any
// time; the scheduler enforces this before enqueuing.
type IngestionJob struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TenantID      uint       `gorm:"index" json:"tenant_id"`
	IntegrationID uint       `gorm:"index" json:"integration_id"`
	Provider      string     `gorm:"size:100" json:"provider"`
	Trigger       JobTrigger `gorm:"size:20" json:"trigger"`
	Status        JobStatus  `gorm:"size:20;index" json:"status"`
	RunAt         time.Time  `gorm:"index" json:"run_at"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	LockedBy      string     `gorm:"size:100" json:"locked_by,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	LastError     string     `gorm:"size:1000" json:"last_error,omitempty"`
	Payload       string     `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}
