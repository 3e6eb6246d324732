package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	"github.com/adlytics/adlytics/internal/entities"
	"github.com/adlytics/adlytics/internal/providers"
)

// WorkerConfig carries the worker's knobs out of the environment.
type WorkerConfig struct {
	ID             string        // Stamped into job lock rows; generated if empty
	Concurrency    int           // Jobs processed in parallel by this process
	PollInterval   time.Duration // Sleep between claim attempts when idle
	BaseRetryDelay time.Duration // Backoff base unit
	SyncInterval   time.Duration // Gap stamped into sync state on success
}

// Worker polls the job queue, claims due jobs with a compare-and-swap
// update, and dispatches them through the provider registry. Multiple
// worker processes can share one queue; the claim protocol keeps each job
// on exactly one of them.
type Worker struct {
	jobs     *jobs.Repository
	executor *executor
	config   WorkerConfig

	sem        chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewWorker creates a worker. Zero-valued config fields get safe defaults.
func NewWorker(jobsRepo *jobs.Repository, integrationsRepo *integrations.Repository, statesRepo *syncstate.Repository, historyRepo *history.Repository, registry *providers.Registry, config WorkerConfig) *Worker {
	if config.ID == "" {
		config.ID = "worker-" + uuid.NewString()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 2
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = time.Hour
	}

	return &Worker{
		jobs: jobsRepo,
		executor: &executor{
			integrations: integrationsRepo,
			states:       statesRepo,
			history:      historyRepo,
			registry:     registry,
			interval:     config.SyncInterval,
		},
		config: config,
		sem:    make(chan struct{}, config.Concurrency),
	}
}

// ID returns the worker's lock identity.
func (w *Worker) ID() string {
	return w.config.ID
}

// Start launches the poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	var loopCtx context.Context
	loopCtx, w.cancelFunc = context.WithCancel(ctx)
	w.mu.Unlock()

	log.Printf("Worker %s: started (concurrency=%d, poll=%v)", w.config.ID, w.config.Concurrency, w.config.PollInterval)
	go w.loop(loopCtx)
}

// Stop stops claiming new jobs and waits for in-flight jobs to finish or
// the context to expire. Returns true if everything drained in time.
func (w *Worker) Stop(ctx context.Context) bool {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return true
	}
	w.isRunning = false
	cancel := w.cancelFunc
	w.cancelFunc = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Worker %s: stopped gracefully", w.config.ID)
		return true
	case <-ctx.Done():
		log.Printf("Worker %s: stopped with jobs still in flight", w.config.ID)
		return false
	}
}

// loop claims and launches jobs until the context is cancelled. A
// semaphore bounds concurrency: when all slots are busy the loop blocks on
// slot acquisition rather than claiming jobs it can't run yet.
func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.sem <- struct{}{}:
		}

		job, err := w.jobs.ClaimNext(w.config.ID, time.Now())
		if err != nil {
			log.Printf("Worker %s: claim failed: %v", w.config.ID, err)
		}
		if job == nil {
			// Nothing claimable (or lost a claim race): idle until the
			// next poll.
			<-w.sem
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.config.PollInterval):
			}
			continue
		}

		w.wg.Add(1)
		go func(job *entities.IngestionJob) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.process(ctx, job)
		}(job)
	}
}

// process runs one claimed job end to end. Panics and errors are contained
// to the job's own record; nothing escapes to the poll loop.
func (w *Worker) process(ctx context.Context, job *entities.IngestionJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %s: job %s panicked: %v", w.config.ID, job.ID, r)
			w.fail(job, fmt.Errorf("panic during job processing: %v", r))
		}
	}()

	log.Printf("Worker %s: processing job %s (integration=%d provider=%s attempt=%d/%d)",
		w.config.ID, job.ID, job.IntegrationID, job.Provider, job.Attempts, job.MaxAttempts)

	integration, err := w.executor.integrations.GetByID(job.IntegrationID)
	if err != nil {
		// The integration can never reappear, but the attempt budget still
		// applies; the retries burn out quickly and the job lands in failed.
		if err == gorm.ErrRecordNotFound {
			err = fmt.Errorf("integration %d no longer exists", job.IntegrationID)
		}
		w.fail(job, err)
		return
	}

	dispatch, err := w.executor.execute(ctx, integration, nil)
	if err != nil {
		w.fail(job, err)
		return
	}

	now := time.Now()
	if err := w.jobs.MarkDone(job.ID, now); err != nil {
		log.Printf("Worker %s: failed to mark job %s done: %v", w.config.ID, job.ID, err)
		return
	}

	log.Printf("Worker %s: job %s succeeded (%s via %s mode)", w.config.ID, job.ID, dispatch.Provider, dispatch.Mode)
}

// fail routes a job failure through the retry policy: requeue with backoff
// while attempts remain, terminal failure once the budget is spent.
func (w *Worker) fail(job *entities.IngestionJob, cause error) {
	now := time.Now()
	retryAt := now.Add(Backoff(w.config.BaseRetryDelay, job.Attempts))

	if err := w.jobs.MarkFailed(job.ID, job.Attempts, job.MaxAttempts, cause.Error(), retryAt, now); err != nil {
		log.Printf("Worker %s: failed to record failure for job %s: %v", w.config.ID, job.ID, err)
		return
	}

	if job.Attempts < job.MaxAttempts {
		log.Printf("Worker %s: job %s failed (attempt %d/%d), retrying at %s: %v",
			w.config.ID, job.ID, job.Attempts, job.MaxAttempts, retryAt.Format(time.RFC3339), cause)
	} else {
		log.Printf("Worker %s: job %s failed permanently after %d attempts: %v",
			w.config.ID, job.ID, job.Attempts, cause)
	}
}
