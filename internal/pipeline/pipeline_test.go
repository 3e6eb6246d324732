package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/integrations"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/database/syncstate"
	"github.com/adlytics/adlytics/internal/entities"
	"github.com/adlytics/adlytics/internal/providers"
)

// testEnv wires a throwaway database with every repository the pipeline
// touches, mirroring the production object graph.
type testEnv struct {
	db           *gorm.DB
	integrations *integrations.Repository
	states       *syncstate.Repository
	jobs         *jobs.Repository
	history      *history.Repository
	registry     *providers.Registry
}

func setupPipelineTest(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_pipeline.db")

	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.Integration{},
		&entities.IntegrationSyncState{},
		&entities.IngestionJob{},
		&entities.SyncHistory{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return &testEnv{
		db:           db,
		integrations: integrations.NewRepository(db, nil),
		states:       syncstate.NewRepository(db),
		jobs:         jobs.NewRepository(db),
		history:      history.NewRepository(db),
		registry:     providers.NewRegistry(false),
	}
}

// createIntegration stores an active integration and returns it with its ID
// populated.
func (env *testEnv) createIntegration(t *testing.T, provider, credentials, config string) *entities.Integration {
	t.Helper()
	integration := &entities.Integration{
		TenantID:    1,
		Provider:    provider,
		Credentials: credentials,
		Config:      config,
		Active:      true,
		Status:      entities.IntegrationStatusActive,
	}
	require.NoError(t, env.integrations.Create(integration))
	return integration
}

func (env *testEnv) newScheduler() *Scheduler {
	return NewScheduler(env.integrations, env.states, env.jobs, SchedulerConfig{
		Schedule:    "0 * * * *",
		MaxAttempts: 3,
		LockExpiry:  15 * time.Minute,
	})
}

func (env *testEnv) newWorker(config WorkerConfig) *Worker {
	return NewWorker(env.jobs, env.integrations, env.states, env.history, env.registry, config)
}
