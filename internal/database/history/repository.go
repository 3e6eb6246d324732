// Package history provides database operations for the append-only sync
// audit log. Rows are written once and never mutated.
package history

import (
	"time"

	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/entities"
)

// Repository handles sync history database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append records one sync attempt's outcome.
func (r *Repository) Append(tenantID, integrationID uint, provider string, status entities.SyncOutcome, result, errMsg string, at time.Time) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	record := &entities.SyncHistory{
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Provider:      provider,
		Status:        status,
		Result:        result,
		Error:         errMsg,
		CreatedAt:     at,
	}
	return r.db.Create(record).Error
}

// ListForIntegration returns an integration's most recent sync attempts.
func (r *Repository) ListForIntegration(integrationID uint, limit int) ([]entities.SyncHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var list []entities.SyncHistory
	err := r.db.
		Where("integration_id = ?", integrationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// DeleteOlderThan prunes history rows beyond the retention window and
// returns how many were removed.
func (r *Repository) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.Where("created_at < ?", cutoff).Delete(&entities.SyncHistory{})
	return result.RowsAffected, result.Error
}
