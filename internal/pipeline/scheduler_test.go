package pipeline

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlytics/adlytics/internal/entities"
)

func (env *testEnv) jobsForIntegration(t *testing.T, integrationID uint) []entities.IngestionJob {
	t.Helper()
	var list []entities.IngestionJob
	require.NoError(t, env.db.Where("integration_id = ?", integrationID).Find(&list).Error)
	return list
}

func TestScheduler_Tick_EnqueuesDueIntegration(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	now := time.Now()

	integration := env.createIntegration(t, "google_ads", "", `{"lookback_days":14}`)

	require.NoError(t, scheduler.Tick(now))

	list := env.jobsForIntegration(t, integration.ID)
	require.Len(t, list, 1)
	job := list[0]
	assert.Equal(t, entities.JobStatusQueued, job.Status)
	assert.Equal(t, entities.JobTriggerCron, job.Trigger)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, `{"lookback_days":14}`, job.Payload)
	assert.WithinDuration(t, now, job.RunAt, time.Second)

	// The first pass also created the sync state row, immediately due.
	state, err := env.states.Get(integration.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.WithinDuration(t, now, state.NextRunAt, time.Second)
}

func TestScheduler_Tick_Idempotent(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	now := time.Now()

	integration := env.createIntegration(t, "google_ads", "", "")

	require.NoError(t, scheduler.Tick(now))
	require.NoError(t, scheduler.Tick(now))

	list := env.jobsForIntegration(t, integration.ID)
	assert.Len(t, list, 1, "second tick must see the queued job and skip")
}

func TestScheduler_Tick_SkipsNotDue(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	now := time.Now()

	integration := env.createIntegration(t, "google_ads", "", "")
	require.NoError(t, env.states.RecordSuccess(integration.ID, integration.TenantID, "google_ads", "c", now, time.Hour))

	require.NoError(t, scheduler.Tick(now))
	assert.Empty(t, env.jobsForIntegration(t, integration.ID))

	// Once the interval has passed the integration is due again.
	require.NoError(t, scheduler.Tick(now.Add(2*time.Hour)))
	assert.Len(t, env.jobsForIntegration(t, integration.ID), 1)
}

func TestScheduler_Tick_SkipsInactive(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()

	integration := &entities.Integration{TenantID: 1, Provider: "google_ads", Active: false}
	require.NoError(t, env.integrations.Create(integration))

	require.NoError(t, scheduler.Tick(time.Now()))
	assert.Empty(t, env.jobsForIntegration(t, integration.ID))
}

func TestScheduler_Tick_SkipsWhileJobRunning(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	now := time.Now()

	integration := env.createIntegration(t, "google_ads", "", "")
	require.NoError(t, scheduler.Tick(now))

	claimed, err := env.jobs.ClaimNext("worker-a", now)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, scheduler.Tick(now))

	list := env.jobsForIntegration(t, integration.ID)
	assert.Len(t, list, 1, "a running job must block a new enqueue")
}

func TestScheduler_Tick_RequeuesStaleLock(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	past := time.Now().Add(-time.Hour)

	integration := env.createIntegration(t, "google_ads", "", "")
	require.NoError(t, scheduler.Tick(past))

	claimed, err := env.jobs.ClaimNext("worker-dead", past)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// An hour later the lock is stale: the tick requeues the orphaned job
	// instead of enqueuing a second one.
	now := time.Now()
	require.NoError(t, scheduler.Tick(now))

	list := env.jobsForIntegration(t, integration.ID)
	require.Len(t, list, 1)
	assert.Equal(t, entities.JobStatusQueued, list[0].Status)
	assert.Nil(t, list[0].LockedAt)
}

func TestScheduler_AtMostOneInFlightUnderConcurrency(t *testing.T) {
	env := setupPipelineTest(t)
	scheduler := env.newScheduler()
	now := time.Now()

	integration := env.createIntegration(t, "google_ads", "", "")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, scheduler.Tick(now))
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			_, err := env.jobs.ClaimNext(workerID, now)
			assert.NoError(t, err)
		}(fmt.Sprintf("worker-%d", i))
	}
	wg.Wait()

	var open int64
	require.NoError(t, env.db.Model(&entities.IngestionJob{}).
		Where("integration_id = ? AND status IN ?", integration.ID,
			[]entities.JobStatus{entities.JobStatusQueued, entities.JobStatusRunning}).
		Count(&open).Error)
	assert.LessOrEqual(t, open, int64(1), "never more than one non-terminal job per integration")

	var running int64
	require.NoError(t, env.db.Model(&entities.IngestionJob{}).
		Where("integration_id = ? AND status = ?", integration.ID, entities.JobStatusRunning).
		Count(&running).Error)
	assert.LessOrEqual(t, running, int64(1))
}
