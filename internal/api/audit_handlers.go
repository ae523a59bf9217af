package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailboard-io/mailboard-ce/internal/store"
)

func (s *Server) handleListAudit(c *gin.Context) {
	filter := store.AuditFilter{
		Actor:  c.Query("actor"),
		Action: c.Query("action"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	entries, err := s.audit.List(c.Request.Context(), filter)
	if err != nil {
		log.Printf("api: audit list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
