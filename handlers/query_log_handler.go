package handlers

import (
	"context"
	"net/http"
	"strconv"

	"regulaite-backend/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultQueryLogLimit = 20
	maxQueryLogLimit     = 200
)

// QueryLogReader lists recorded queries
type QueryLogReader interface {
	ListByUsername(ctx context.Context, username string, limit int) ([]*models.QueryLog, error)
}

// QueryLogHandler handles HTTP requests for the query audit log
type QueryLogHandler struct {
	logs QueryLogReader
}

// NewQueryLogHandler creates a new query log handler
func NewQueryLogHandler(logs QueryLogReader) *QueryLogHandler {
	return &QueryLogHandler{logs: logs}
}

// List handles GET /api/chat/queries?limit=
func (h *QueryLogHandler) List(c *gin.Context) {
	limit := defaultQueryLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxQueryLogLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_LIMIT",
					"message": "limit must be between 1 and 200",
				},
			})
			return
		}
		limit = n
	}

	logs, err := h.logs.ListByUsername(c.Request.Context(), c.GetString(ContextUsername), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUERY_LOG_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	if logs == nil {
		logs = []*models.QueryLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
	})
}
