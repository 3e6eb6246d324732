// Package entrypoint wires configuration, storage, the provider registry,
// and the pipeline processes together for each run mode.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adlytics/adlytics/internal/config"
	"github.com/adlytics/adlytics/internal/crypto"
	"github.com/adlytics/adlytics/internal/database"
	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	http_controllers "github.com/adlytics/adlytics/internal/http"
	"github.com/adlytics/adlytics/internal/pipeline"
	"github.com/adlytics/adlytics/internal/providers"
	"github.com/adlytics/adlytics/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// app is the wired object graph shared by all run modes.
type app struct {
	cfg          *config.Config
	db           *database.Database
	integrations *integrations.Repository
	states       *syncstate.Repository
	jobs         *jobs.Repository
	history      *history.Repository
	registry     *providers.Registry
	service      *pipeline.Service
}

func buildApp(cfg *config.Config) (*app, error) {
	var encryptor *crypto.Encryptor
	if cfg.Providers.CredentialsKey != "" {
		var err error
		encryptor, err = crypto.NewEncryptorFromBase64(cfg.Providers.CredentialsKey)
		if err != nil {
			return nil, fmt.Errorf("invalid CREDENTIALS_KEY: %w", err)
		}
		log.Printf("Credentials encryption at rest enabled")
	} else {
		log.Printf("WARNING: CREDENTIALS_KEY is not set. Integration credentials will be stored unencrypted.")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	registry := providers.NewRegistry(cfg.Providers.ForceMock)
	providers.RegisterDefaults(registry)
	if cfg.Providers.ForceMock {
		log.Printf("Provider registry: FORCE_MOCK_PROVIDERS set, all syncs use mock handlers")
	}

	integrationsRepo := integrations.NewRepository(db.DB, encryptor)
	statesRepo := syncstate.NewRepository(db.DB)
	jobsRepo := jobs.NewRepository(db.DB)
	historyRepo := history.NewRepository(db.DB)

	service := pipeline.NewService(integrationsRepo, statesRepo, jobsRepo, historyRepo, registry, cfg.Scheduler.Interval)

	return &app{
		cfg:          cfg,
		db:           db,
		integrations: integrationsRepo,
		states:       statesRepo,
		jobs:         jobsRepo,
		history:      historyRepo,
		registry:     registry,
		service:      service,
	}, nil
}

func (a *app) newScheduler() *pipeline.Scheduler {
	return pipeline.NewScheduler(a.integrations, a.states, a.jobs, pipeline.SchedulerConfig{
		Schedule:    a.cfg.Scheduler.Schedule,
		MaxAttempts: a.cfg.Jobs.MaxAttempts,
		LockExpiry:  a.cfg.Jobs.LockExpiry,
	})
}

func (a *app) newWorker() *pipeline.Worker {
	return pipeline.NewWorker(a.jobs, a.integrations, a.states, a.history, a.registry, pipeline.WorkerConfig{
		ID:             a.cfg.Worker.ID,
		Concurrency:    a.cfg.Worker.Concurrency,
		PollInterval:   a.cfg.Worker.PollInterval,
		BaseRetryDelay: a.cfg.Jobs.BaseRetryDelay,
		SyncInterval:   a.cfg.Scheduler.Interval,
	})
}

// Run starts the full node: HTTP API plus, depending on configuration, the
// scheduler, a worker pool, and the maintenance queue.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting adlytics v%s", version)

	a, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *pipeline.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = a.newScheduler()
		if err := scheduler.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		log.Printf("Scheduler: disabled")
	}

	var worker *pipeline.Worker
	if cfg.Worker.Enabled {
		worker = a.newWorker()
		worker.Start(ctx)
	} else {
		log.Printf("Worker: disabled")
	}

	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to create maintenance queue: %v", err)
		}
		taskClient.Register(tasks.NewPruneHistoryQueue(a.history, a.jobs))
		go taskClient.Start(ctx)
		schedulePruning(ctx, taskClient, cfg.History.Retention)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		DB:        a.db,
		Service:   a.service,
		Scheduler: scheduler,
		Jobs:      a.jobs,
		History:   a.history,
		Version:   version,
	})

	Serve(router, cfg, func(shutdownCtx context.Context) {
		if scheduler != nil {
			scheduler.Stop()
		}
		if worker != nil {
			worker.Stop(shutdownCtx)
		}
		if taskClient != nil {
			taskClient.Stop(shutdownCtx)
			taskClient.Close()
		}
	})
}

// RunWorker starts a standalone worker process sharing the job store.
func RunWorker(cfg *config.Config, version string) {
	log.Printf("Starting adlytics worker v%s", version)

	a, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := a.newWorker()
	worker.Start(ctx)

	waitForSignal()

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	worker.Stop(shutdownCtx)
}

// RunScheduler starts a standalone scheduler process.
func RunScheduler(cfg *config.Config, version string) {
	log.Printf("Starting adlytics scheduler v%s", version)

	a, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := a.newScheduler()
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	waitForSignal()
	scheduler.Stop()
}

// Serve runs the HTTP server until interrupted, then drains via the
// shutdown callback within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	waitForSignal()
	log.Printf("Shutdown requested, waiting up to %v", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop pipeline processes before the HTTP listener so in-flight jobs
	// finish and no new claims start during drain.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// schedulePruning enqueues a retention pass now and then once a day for as
// long as the process lives.
func schedulePruning(ctx context.Context, client *tasks.Client, retention time.Duration) {
	enqueue := func() {
		task := tasks.PruneHistoryTask{RetentionHours: int(retention.Hours())}
		if _, err := client.Add(task).Save(); err != nil {
			log.Printf("Failed to enqueue history pruning: %v", err)
		}
	}

	go func() {
		enqueue()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				enqueue()
			}
		}
	}()
}
