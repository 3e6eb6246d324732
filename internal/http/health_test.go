package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlytics/adlytics/internal/database"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/entities"
)

func setupHealthTestDB(t *testing.T) (*database.Database, *jobs.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test_health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, jobs.NewRepository(db.DB)
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy with queue depth when database is connected", func(t *testing.T) {
		db, jobsRepo := setupHealthTestDB(t)

		integration := &entities.Integration{ID: 1, TenantID: 1, Provider: "google_ads"}
		_, err := jobsRepo.Enqueue(integration, entities.JobTriggerCron, time.Now(), 3, "")
		require.NoError(t, err)

		controller := NewHealthController(db, jobsRepo, "1.0.0")

		router := gin.New()
		router.GET("/health", controller.Status)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		err = json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "ok", response.Checks["queue"])
		assert.EqualValues(t, 1, response.Queue[entities.JobStatusQueued])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("reports database as not configured when nil", func(t *testing.T) {
		gin.SetMode(gin.TestMode)

		controller := NewHealthController(nil, nil, "1.0.0")

		router := gin.New()
		router.GET("/health", controller.Status)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
		assert.Empty(t, response.Queue)
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db, jobsRepo := setupHealthTestDB(t)
		require.NoError(t, db.Close())

		controller := NewHealthController(db, jobsRepo, "1.0.0")

		router := gin.New()
		router.GET("/health", controller.Status)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, "unhealthy", response.Status)
	})
}
