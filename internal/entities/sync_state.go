package entities

import "time"

// IntegrationSyncState tracks incremental sync progress for one integration
// (1:1). The cursor is an opaque provider-defined resume token.
//
// NextRunAt only moves forward on a successful sync. Failed attempts are
// retried through the job queue's backoff, not by re-scheduling, so a
// failing integration stays "due" until a sync finally succeeds.
type IntegrationSyncState struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	IntegrationID uint       `gorm:"uniqueIndex" json:"integration_id"`
	TenantID      uint       `gorm:"index" json:"tenant_id"`
	Provider      string     `gorm:"size:100" json:"provider"`
	Cursor        string     `gorm:"type:text" json:"cursor,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	NextRunAt     time.Time  `gorm:"index" json:"next_run_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (IntegrationSyncState) TableName() string {
	return "integration_sync_states"
}
