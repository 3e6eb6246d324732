package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	"github.com/adlytics/adlytics/internal/entities"
)

// SchedulerConfig carries the scheduler's knobs out of the environment.
type SchedulerConfig struct {
	Schedule    string        // Cron expression for the tick cadence
	MaxAttempts int           // Attempt budget stamped on enqueued jobs
	LockExpiry  time.Duration // Running jobs locked longer than this are requeued
}

// Scheduler periodically scans active integrations and enqueues one
// ingestion job per due integration. A tick is a best-effort batch: one
// integration's failure is logged and the scan moves on.
type Scheduler struct {
	integrations *integrations.Repository
	states       *syncstate.Repository
	jobs         *jobs.Repository
	config       SchedulerConfig

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isTicking  bool
	cancelFunc context.CancelFunc
}

// NewScheduler creates a scheduler instance.
func NewScheduler(integrationsRepo *integrations.Repository, statesRepo *syncstate.Repository, jobsRepo *jobs.Repository, config SchedulerConfig) *Scheduler {
	return &Scheduler{
		integrations: integrationsRepo,
		states:       statesRepo,
		jobs:         jobsRepo,
		config:       config,
		cron:         cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins firing ticks on the configured schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runTick()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline tick: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next tick will fire.
func (s *Scheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runTick guards against overlapping ticks; a slow scan simply causes the
// next cron firing to be skipped.
func (s *Scheduler) runTick() {
	s.mu.Lock()
	if s.isTicking {
		s.mu.Unlock()
		log.Printf("Scheduler: tick skipped (previous tick still running)")
		return
	}
	s.isTicking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isTicking = false
		s.mu.Unlock()
	}()

	if err := s.Tick(time.Now()); err != nil {
		log.Printf("Scheduler: tick aborted: %v", err)
	}
}

// Tick runs one scheduling pass. It first requeues jobs orphaned by dead
// workers, then enqueues a job for every due integration that doesn't
// already have one in flight.
func (s *Scheduler) Tick(now time.Time) error {
	if s.config.LockExpiry > 0 {
		released, err := s.jobs.ReleaseStale(s.config.LockExpiry, now)
		if err != nil {
			log.Printf("Scheduler: stale lock sweep failed: %v", err)
		} else if released > 0 {
			log.Printf("Scheduler: requeued %d jobs with expired locks", released)
		}
	}

	active, err := s.integrations.FindActive()
	if err != nil {
		return fmt.Errorf("scan active integrations: %w", err)
	}

	enqueued := 0
	for i := range active {
		ok, err := s.enqueueIfDue(&active[i], now)
		if err != nil {
			log.Printf("Scheduler: integration %d (%s): %v", active[i].ID, active[i].Provider, err)
			continue
		}
		if ok {
			enqueued++
		}
	}

	if enqueued > 0 {
		log.Printf("Scheduler: enqueued %d jobs across %d active integrations", enqueued, len(active))
	}
	return nil
}

// enqueueIfDue applies the per-integration rules: ensure a sync state row
// exists, skip when not due, otherwise enqueue. The guarded insert is what
// keeps the queue at one non-terminal job per integration even when ticks
// from separate scheduler processes overlap.
func (s *Scheduler) enqueueIfDue(integration *entities.Integration, now time.Time) (bool, error) {
	state, err := s.states.EnsureForIntegration(integration, now)
	if err != nil {
		return false, fmt.Errorf("ensure sync state: %w", err)
	}

	if !syncstate.IsDue(state, now) {
		return false, nil
	}

	payload := fmt.Sprintf(`{"lookback_days":%d}`, integration.SyncConfig().LookbackDays)
	enqueued, err := s.jobs.EnqueueIfIdle(integration, entities.JobTriggerCron, now, s.config.MaxAttempts, payload)
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}
	return enqueued, nil
}
