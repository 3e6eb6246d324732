package http

import (
	"github.com/gin-gonic/gin"

	"github.com/adlytics/adlytics/internal/database"
	"github.com/adlytics/adlytics/internal/database/history"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/pipeline"
)

// RouterConfig receives the router's dependencies in one struct to keep
// construction testable.
type RouterConfig struct {
	DB        *database.Database
	Service   *pipeline.Service
	Scheduler *pipeline.Scheduler
	Jobs      *jobs.Repository
	History   *history.Repository
	Version   string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	healthController := NewHealthController(cfg.DB, cfg.Jobs, cfg.Version)
	router.GET("/health", healthController.Status)

	pipelineController := NewPipelineController(cfg.Service, cfg.Scheduler)
	jobsController := NewJobsController(cfg.Jobs)
	historyController := NewHistoryController(cfg.History)

	api := router.Group("/api")
	{
		api.POST("/pipeline/run", pipelineController.Run)
		api.GET("/pipeline/status", pipelineController.Status)
		api.GET("/jobs", jobsController.List)
		api.GET("/jobs/:id", jobsController.Get)
		api.GET("/integrations/:id/history", historyController.ListForIntegration)
	}

	return router
}
