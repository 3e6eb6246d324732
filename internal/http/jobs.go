package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/entities"
)

// JobsController exposes read-only views of the ingestion job queue.
type JobsController struct {
	jobs *jobs.Repository
}

func NewJobsController(jobsRepo *jobs.Repository) *JobsController {
	return &JobsController{jobs: jobsRepo}
}

// List handles GET /api/jobs?status=queued&limit=50.
func (jc *JobsController) List(c *gin.Context) {
	status := entities.JobStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	list, err := jc.jobs.ListRecent(status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	counts, err := jc.jobs.CountByStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": list, "counts": counts})
}

// Get handles GET /api/jobs/:id.
func (jc *JobsController) Get(c *gin.Context) {
	job, err := jc.jobs.GetByID(c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}
