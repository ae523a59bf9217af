package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailboard-io/mailboard-ce/internal/middleware"
	"github.com/mailboard-io/mailboard-ce/internal/models"
	"github.com/mailboard-io/mailboard-ce/internal/store"
)

func (s *Server) handleListQueues(c *gin.Context) {
	queues, err := s.queues.List(c.Request.Context())
	if err != nil {
		log.Printf("api: queue list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queues"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleSuspendQueue(c *gin.Context) {
	name := c.Param("name")
	var req suspendRequest
	// Body is optional; a bare POST suspends without a reason.
	_ = c.ShouldBindJSON(&req)

	queue, err := s.queues.SetStatus(c.Request.Context(), name, models.QueueStatusSuspended)
	if err != nil {
		s.queueError(c, name, err)
		return
	}

	user := middleware.UserFromContext(c)
	s.recordAudit(c, "queue.suspend", name, req.Reason)

	event, err := models.NewEvent(models.EventQueueSuspend, models.QueueSuspendData{
		QueueName: name,
		Reason:    req.Reason,
		Actor:     user.Email,
		Timestamp: time.Now().UTC(),
	})
	if err == nil {
		s.hub.Broadcast(event)
	}

	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

func (s *Server) handleResumeQueue(c *gin.Context) {
	name := c.Param("name")

	queue, err := s.queues.SetStatus(c.Request.Context(), name, models.QueueStatusActive)
	if err != nil {
		s.queueError(c, name, err)
		return
	}

	user := middleware.UserFromContext(c)
	s.recordAudit(c, "queue.resume", name, "")

	event, err := models.NewEvent(models.EventQueueResume, models.QueueResumeData{
		QueueName: name,
		Actor:     user.Email,
		Timestamp: time.Now().UTC(),
	})
	if err == nil {
		s.hub.Broadcast(event)
	}

	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

func (s *Server) queueError(c *gin.Context, name string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue " + name})
		return
	}
	log.Printf("api: queue update failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update queue"})
}

func (s *Server) recordAudit(c *gin.Context, action, target, detail string) {
	user := middleware.UserFromContext(c)
	if user == nil {
		return
	}
	_, err := s.audit.Record(c.Request.Context(), models.AuditEntry{
		Actor:     user.Email,
		ActorRole: user.Role,
		Action:    action,
		Target:    target,
		Detail:    detail,
	})
	if err != nil {
		log.Printf("api: audit record failed: %v", err)
	}
}
