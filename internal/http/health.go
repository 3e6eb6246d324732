package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adlytics/adlytics/internal/database"
	"github.com/adlytics/adlytics/internal/database/jobs"
	"github.com/adlytics/adlytics/internal/entities"
)

type HealthResponse struct {
	Status  string                       `json:"status"`
	Time    string                       `json:"time"`
	Version string                       `json:"version,omitempty"`
	Checks  map[string]string            `json:"checks"`
	Queue   map[entities.JobStatus]int64 `json:"queue,omitempty"`
}

type HealthController struct {
	db      *database.Database
	jobs    *jobs.Repository
	version string
}

// NewHealthController creates the health endpoint. jobsRepo may be nil;
// queue depth is then omitted from the response.
func NewHealthController(db *database.Database, jobsRepo *jobs.Repository, version string) *HealthController {
	return &HealthController{
		db:      db,
		jobs:    jobsRepo,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	var queue map[entities.JobStatus]int64
	if h.jobs != nil && checks["database"] == "ok" {
		counts, err := h.jobs.CountByStatus()
		if err != nil {
			checks["queue"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["queue"] = "ok"
			queue = counts
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
		Queue:   queue,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
