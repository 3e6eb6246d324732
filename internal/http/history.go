package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adlytics/adlytics/internal/database/history"
)

// HistoryController exposes the append-only sync audit log.
type HistoryController struct {
	history *history.Repository
}

func NewHistoryController(historyRepo *history.Repository) *HistoryController {
	return &HistoryController{history: historyRepo}
}

// ListForIntegration handles GET /api/integrations/:id/history?limit=50.
func (hc *HistoryController) ListForIntegration(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid integration id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := hc.history.ListForIntegration(uint(id), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": list})
}
