// Package syncstate provides database operations for per-integration sync
// cursors and next-run timestamps.
//
// There is deliberately no RecordFailure here: failed attempts are retried
// through the job queue's backoff, so NextRunAt only ever advances on a
// successful sync.
package syncstate

import (
	"time"

	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/entities"
)

// IsDue reports whether an integration is eligible for a new sync. An
// integration with no state row yet has never synced and is always due.
func IsDue(state *entities.IntegrationSyncState, now time.Time) bool {
	if state == nil {
		return true
	}
	return !state.NextRunAt.After(now)
}

// Repository handles sync state database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get fetches the state row for an integration, or nil if none exists yet.
func (r *Repository) Get(integrationID uint) (*entities.IntegrationSyncState, error) {
	var state entities.IntegrationSyncState
	err := r.db.Where("integration_id = ?", integrationID).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// EnsureForIntegration returns the integration's state row, creating one
// with NextRunAt = now (immediately due) on the first scheduler pass.
func (r *Repository) EnsureForIntegration(integration *entities.Integration, now time.Time) (*entities.IntegrationSyncState, error) {
	state, err := r.Get(integration.ID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	state = &entities.IntegrationSyncState{
		IntegrationID: integration.ID,
		TenantID:      integration.TenantID,
		Provider:      integration.Provider,
		NextRunAt:     now,
	}
	if err := r.db.Create(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// RecordSuccess upserts the state after a successful sync: both attempt and
// success timestamps move to now, the next eligible run moves forward by
// the fixed interval, and the provider's resume cursor is stored.
func (r *Repository) RecordSuccess(integrationID, tenantID uint, provider, cursor string, now time.Time, interval time.Duration) error {
	state, err := r.Get(integrationID)
	if err != nil {
		return err
	}

	if state == nil {
		state = &entities.IntegrationSyncState{
			IntegrationID: integrationID,
			TenantID:      tenantID,
			Provider:      provider,
		}
	}

	state.LastAttemptAt = &now
	state.LastSuccessAt = &now
	state.NextRunAt = now.Add(interval)
	state.Cursor = cursor
	state.UpdatedAt = now

	return r.db.Save(state).Error
}
