package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Global
		Scheduler
		Worker
		Jobs
		Providers
		History
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Scheduler struct {
		Enabled  bool
		Schedule string        // Cron format: "0 * * * *" = hourly
		Interval time.Duration // Gap between successful syncs per integration
	}
	Worker struct {
		Enabled      bool
		ID           string // Identifies this process in job lock rows
		Concurrency  int
		PollInterval time.Duration
	}
	Jobs struct {
		MaxAttempts    int
		BaseRetryDelay time.Duration
		LockExpiry     time.Duration // Running jobs locked longer than this are requeued
	}
	Providers struct {
		ForceMock      bool
		CredentialsKey string // Base64 AES-256 key; empty disables encryption at rest
	}
	History struct {
		Retention time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 10)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Scheduler defaults
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("sync_interval", "1h")

	// Worker defaults
	v.SetDefault("worker_enabled", true)
	v.SetDefault("worker_id", "")
	v.SetDefault("worker_concurrency", 2)
	v.SetDefault("worker_poll_interval", "2s")

	// Job queue defaults
	v.SetDefault("job_max_attempts", 3)
	v.SetDefault("job_base_retry_delay", "5s")
	v.SetDefault("job_lock_expiry", "15m")

	// Provider defaults
	v.SetDefault("force_mock_providers", false)
	v.SetDefault("credentials_key", "")

	// History retention (30 days)
	v.SetDefault("history_retention", "720h")

	// Maintenance task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Scheduler: Scheduler{
			Enabled:  v.GetBool("SCHEDULER_ENABLED"),
			Schedule: v.GetString("SCHEDULER_SCHEDULE"),
			Interval: v.GetDuration("SYNC_INTERVAL"),
		},
		Worker: Worker{
			Enabled:      v.GetBool("WORKER_ENABLED"),
			ID:           v.GetString("WORKER_ID"),
			Concurrency:  v.GetInt("WORKER_CONCURRENCY"),
			PollInterval: v.GetDuration("WORKER_POLL_INTERVAL"),
		},
		Jobs: Jobs{
			MaxAttempts:    v.GetInt("JOB_MAX_ATTEMPTS"),
			BaseRetryDelay: v.GetDuration("JOB_BASE_RETRY_DELAY"),
			LockExpiry:     v.GetDuration("JOB_LOCK_EXPIRY"),
		},
		Providers: Providers{
			ForceMock:      v.GetBool("FORCE_MOCK_PROVIDERS"),
			CredentialsKey: v.GetString("CREDENTIALS_KEY"),
		},
		History: History{
			Retention: v.GetDuration("HISTORY_RETENTION"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
