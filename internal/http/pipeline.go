package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adlytics/adlytics/internal/pipeline"
)

// PipelineController handles the synchronous pipeline endpoints.
type PipelineController struct {
	service   *pipeline.Service
	scheduler *pipeline.Scheduler
}

// NewPipelineController creates a new PipelineController. scheduler may be
// nil when this process runs without one.
func NewPipelineController(service *pipeline.Service, scheduler *pipeline.Scheduler) *PipelineController {
	return &PipelineController{service: service, scheduler: scheduler}
}

// RunRequest is the body of POST /api/pipeline/run.
type RunRequest struct {
	Providers []string `json:"providers"` // Optional allow-list of provider keys
	Force     bool     `json:"force"`     // Sync even when not due
}

// Run handles POST /api/pipeline/run: sync matching integrations right now,
// bypassing the job queue, and return per-integration outcomes.
func (pc *PipelineController) Run(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	outcomes, err := pc.service.RunNow(c.Request.Context(), req.Providers, req.Force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// Status handles GET /api/pipeline/status.
func (pc *PipelineController) Status(c *gin.Context) {
	statuses, err := pc.service.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"integrations": statuses}
	if pc.scheduler != nil {
		resp["scheduler_running"] = pc.scheduler.IsRunning()
		if next := pc.scheduler.NextRunTime(); next != nil {
			resp["next_tick_at"] = next
		}
	}

	c.JSON(http.StatusOK, resp)
}
