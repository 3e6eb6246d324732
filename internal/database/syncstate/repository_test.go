package syncstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adlytics/adlytics/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_syncstate.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.IntegrationSyncState{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewRepository(db)
}

func TestIsDue(t *testing.T) {
	now := time.Now()

	t.Run("no state row means due", func(t *testing.T) {
		assert.True(t, IsDue(nil, now))
	})

	t.Run("past next run is due", func(t *testing.T) {
		state := &entities.IntegrationSyncState{NextRunAt: now.Add(-time.Second)}
		assert.True(t, IsDue(state, now))
	})

	t.Run("exact boundary is due", func(t *testing.T) {
		state := &entities.IntegrationSyncState{NextRunAt: now}
		assert.True(t, IsDue(state, now))
	})

	t.Run("future next run is not due", func(t *testing.T) {
		state := &entities.IntegrationSyncState{NextRunAt: now.Add(time.Hour)}
		assert.False(t, IsDue(state, now))
	})
}

func TestRepository_EnsureForIntegration(t *testing.T) {
	repo := setupTestDB(t)
	now := time.Now()

	integration := &entities.Integration{ID: 1, TenantID: 2, Provider: "google_ads"}

	state, err := repo.EnsureForIntegration(integration, now)
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.IntegrationID)
	assert.Equal(t, uint(2), state.TenantID)
	assert.Equal(t, "google_ads", state.Provider)
	assert.WithinDuration(t, now, state.NextRunAt, time.Second)
	assert.True(t, IsDue(state, now), "fresh state must be immediately due")

	// Second call returns the existing row rather than resetting it.
	again, err := repo.EnsureForIntegration(integration, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, state.ID, again.ID)
	assert.WithinDuration(t, state.NextRunAt, again.NextRunAt, time.Second)
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	state, err := repo.Get(999)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRepository_RecordSuccess(t *testing.T) {
	repo := setupTestDB(t)
	now := time.Now()
	interval := time.Hour

	t.Run("creates state when missing", func(t *testing.T) {
		err := repo.RecordSuccess(1, 2, "google_ads", "cursor-1", now, interval)
		require.NoError(t, err)

		state, err := repo.Get(1)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "cursor-1", state.Cursor)
		require.NotNil(t, state.LastSuccessAt)
		assert.WithinDuration(t, now, *state.LastSuccessAt, time.Second)
		require.NotNil(t, state.LastAttemptAt)
		assert.WithinDuration(t, now, *state.LastAttemptAt, time.Second)
		assert.WithinDuration(t, now.Add(interval), state.NextRunAt, time.Second)
		assert.False(t, IsDue(state, now))
	})

	t.Run("updates existing state and advances next run", func(t *testing.T) {
		later := now.Add(2 * time.Hour)
		err := repo.RecordSuccess(1, 2, "google_ads", "cursor-2", later, interval)
		require.NoError(t, err)

		state, err := repo.Get(1)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "cursor-2", state.Cursor)
		assert.WithinDuration(t, later.Add(interval), state.NextRunAt, time.Second)
	})
}
