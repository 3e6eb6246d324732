package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// HistoryPruner deletes sync history rows beyond a retention window.
type HistoryPruner interface {
	DeleteOlderThan(retention time.Duration) (int64, error)
}

// JobPruner deletes terminal ingestion jobs beyond a retention window.
type JobPruner interface {
	DeleteTerminalOlderThan(retention time.Duration) (int64, error)
}

// PruneHistoryTask removes sync history and finished jobs older than the
// configured retention period.
type PruneHistoryTask struct {
	RetentionHours int `json:"retention_hours"`
}

// Config returns the queue configuration for history pruning tasks.
func (t PruneHistoryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_history",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneHistoryProcessor creates a processor function for PruneHistoryTask.
func PruneHistoryProcessor(histories HistoryPruner, jobs JobPruner) backlite.QueueProcessor[PruneHistoryTask] {
	return func(ctx context.Context, task PruneHistoryTask) error {
		retentionHours := task.RetentionHours
		if retentionHours <= 0 {
			retentionHours = 720
		}
		retention := time.Duration(retentionHours) * time.Hour

		if histories == nil {
			return fmt.Errorf("history pruner not configured")
		}

		removed, err := histories.DeleteOlderThan(retention)
		if err != nil {
			return fmt.Errorf("prune sync history: %w", err)
		}

		var removedJobs int64
		if jobs != nil {
			removedJobs, err = jobs.DeleteTerminalOlderThan(retention)
			if err != nil {
				return fmt.Errorf("prune finished jobs: %w", err)
			}
		}

		log.Printf("[TASK] Pruned %d history rows and %d finished jobs older than %dh", removed, removedJobs, retentionHours)
		return nil
	}
}

// NewPruneHistoryQueue creates a backlite queue for history pruning tasks.
func NewPruneHistoryQueue(histories HistoryPruner, jobs JobPruner) backlite.Queue {
	return backlite.NewQueue(PruneHistoryProcessor(histories, jobs))
}
