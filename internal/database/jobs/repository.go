// Package jobs provides database operations for the persisted ingestion
// job queue.
//
// The queue row is the single point of mutual exclusion between worker
// processes: claiming is a conditional UPDATE guarded by status and lock
// columns, and the affected-row count tells the caller whether it won the
// race. No advisory locks are needed.
package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/entities"
)

// Repository handles ingestion job database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a new queued job for an integration, unconditionally.
// The scheduler goes through EnqueueIfIdle instead, which enforces the
// one-open-job-per-integration rule.
func (r *Repository) Enqueue(integration *entities.Integration, trigger entities.JobTrigger, runAt time.Time, maxAttempts int, payload string) (*entities.IngestionJob, error) {
	job := &entities.IngestionJob{
		ID:            uuid.NewString(),
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		Provider:      integration.Provider,
		Trigger:       trigger,
		Status:        entities.JobStatusQueued,
		RunAt:         runAt,
		MaxAttempts:   maxAttempts,
		Payload:       payload,
	}
	if err := r.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// HasOpenJob reports whether the integration already has a queued or
// running job.
func (r *Repository) HasOpenJob(integrationID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.IngestionJob{}).
		Where("integration_id = ? AND status IN ?", integrationID,
			[]entities.JobStatus{entities.JobStatusQueued, entities.JobStatusRunning}).
		Count(&count).Error
	return count > 0, err
}

// EnqueueIfIdle inserts a queued job only if the integration has no open
// job, in one atomic statement, and reports whether a row was inserted.
// This closes the check-then-insert race between overlapping scheduler
// ticks the same way the claim protocol closes the claim race: the
// affected-row count is the verdict.
func (r *Repository) EnqueueIfIdle(integration *entities.Integration, trigger entities.JobTrigger, runAt time.Time, maxAttempts int, payload string) (bool, error) {
	now := time.Now()
	result := r.db.Exec(`
		INSERT INTO ingestion_jobs
			(id, tenant_id, integration_id, provider, "trigger", status, run_at,
			 attempts, max_attempts, locked_by, last_error, payload, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, 0, ?, '', '', ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM ingestion_jobs
			WHERE integration_id = ? AND status IN (?, ?)
		)`,
		uuid.NewString(), integration.TenantID, integration.ID, integration.Provider,
		trigger, entities.JobStatusQueued, runAt, maxAttempts, payload, now, now,
		integration.ID, entities.JobStatusQueued, entities.JobStatusRunning,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID fetches one job.
func (r *Repository) GetByID(id string) (*entities.IngestionJob, error) {
	var job entities.IngestionJob
	if err := r.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext attempts to claim the earliest due queued job for this worker.
// It returns (nil, nil) when nothing is claimable or another worker won the
// race; the caller re-polls after its poll interval.
//
// The claim is a compare-and-swap: the UPDATE only applies while the row is
// still queued and unlocked, and RowsAffected == 0 means someone else got
// there first.
func (r *Repository) ClaimNext(workerID string, now time.Time) (*entities.IngestionJob, error) {
	var candidate entities.IngestionJob
	err := r.db.
		Where("status = ? AND run_at <= ? AND locked_at IS NULL", entities.JobStatusQueued, now).
		Order("run_at ASC").
		First(&candidate).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	result := r.db.Model(&entities.IngestionJob{}).
		Where("id = ? AND status = ? AND locked_at IS NULL", candidate.ID, entities.JobStatusQueued).
		Updates(map[string]any{
			"status":     entities.JobStatusRunning,
			"locked_at":  now,
			"locked_by":  workerID,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to another worker.
		return nil, nil
	}

	return r.GetByID(candidate.ID)
}

// MarkDone transitions a job to success and clears its lock.
func (r *Repository) MarkDone(jobID string, now time.Time) error {
	return r.db.Model(&entities.IngestionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      entities.JobStatusSuccess,
			"finished_at": now,
			"locked_at":   nil,
			"locked_by":   "",
			"last_error":  "",
			"updated_at":  now,
		}).Error
}

// MarkFailed records a failed attempt. While attempts remain, the job goes
// back to queued with run_at pushed to retryAt (backoff is the caller's
// policy); once the budget is spent it becomes terminally failed. The error
// message is kept either way.
func (r *Repository) MarkFailed(jobID string, attempts, maxAttempts int, errMsg string, retryAt, now time.Time) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}

	if attempts < maxAttempts {
		return r.db.Model(&entities.IngestionJob{}).
			Where("id = ?", jobID).
			Updates(map[string]any{
				"status":      entities.JobStatusQueued,
				"run_at":      retryAt,
				"locked_at":   nil,
				"locked_by":   "",
				"started_at":  nil,
				"finished_at": nil,
				"last_error":  errMsg,
				"updated_at":  now,
			}).Error
	}

	return r.db.Model(&entities.IngestionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      entities.JobStatusFailed,
			"finished_at": now,
			"locked_at":   nil,
			"locked_by":   "",
			"last_error":  errMsg,
			"updated_at":  now,
		}).Error
}

// ReleaseStale requeues running jobs whose lock is older than expiry,
// meaning the worker that claimed them died mid-job. Jobs that already
// spent their attempt budget are failed instead of requeued so a crash
// loop cannot retry forever. Returns how many jobs were requeued.
func (r *Repository) ReleaseStale(expiry time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-expiry)

	failed := r.db.Model(&entities.IngestionJob{}).
		Where("status = ? AND locked_at IS NOT NULL AND locked_at < ? AND attempts >= max_attempts",
			entities.JobStatusRunning, cutoff).
		Updates(map[string]any{
			"status":      entities.JobStatusFailed,
			"finished_at": now,
			"locked_at":   nil,
			"locked_by":   "",
			"last_error":  "worker lock expired after final attempt",
			"updated_at":  now,
		})
	if failed.Error != nil {
		return 0, failed.Error
	}

	requeued := r.db.Model(&entities.IngestionJob{}).
		Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?",
			entities.JobStatusRunning, cutoff).
		Updates(map[string]any{
			"status":      entities.JobStatusQueued,
			"run_at":      now,
			"locked_at":   nil,
			"locked_by":   "",
			"started_at":  nil,
			"last_error":  "requeued after worker lock expired",
			"updated_at":  now,
		})
	if requeued.Error != nil {
		return 0, requeued.Error
	}
	return requeued.RowsAffected, nil
}

// ListRecent returns the most recently created jobs, optionally filtered by
// status, for the jobs API.
func (r *Repository) ListRecent(status entities.JobStatus, limit int) ([]entities.IngestionJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := r.db.Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var list []entities.IngestionJob
	err := query.Find(&list).Error
	return list, err
}

// CountByStatus returns job counts grouped by status, for the status API.
func (r *Repository) CountByStatus() (map[entities.JobStatus]int64, error) {
	type row struct {
		Status entities.JobStatus
		Count  int64
	}
	var rows []row
	err := r.db.Model(&entities.IngestionJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.JobStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// DeleteTerminalOlderThan prunes terminal jobs finished before the
// retention window. Queued and running jobs are never touched.
func (r *Repository) DeleteTerminalOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.
		Where("status IN ? AND finished_at < ?",
			[]entities.JobStatus{entities.JobStatusSuccess, entities.JobStatusFailed}, cutoff).
		Delete(&entities.IngestionJob{})
	return result.RowsAffected, result.Error
}
