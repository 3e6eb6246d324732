package entities

import "time"

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeError   SyncOutcome = "error"
)

// SyncHistory is an append-only audit record of one sync attempt's outcome.
// Rows are written by both the direct-sync path and the worker pool and are
// never mutated afterwards.
type SyncHistory struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	TenantID      uint        `gorm:"index" json:"tenant_id"`
	IntegrationID uint        `gorm:"index" json:"integration_id"`
	Provider      string      `gorm:"size:100" json:"provider"`
	Status        SyncOutcome `gorm:"size:20;index" json:"status"`
	Result        string      `gorm:"type:text" json:"result,omitempty"` // JSON diagnostic payload
	Error         string      `gorm:"size:1000" json:"error,omitempty"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
}

func (SyncHistory) TableName() string {
	return "sync_history"
}
