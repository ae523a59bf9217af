// Package api wires the gateway's REST routes and the WebSocket event
// stream endpoint consumed by the dashboard.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/mailboard-io/mailboard-ce/internal/auth"
	"github.com/mailboard-io/mailboard-ce/internal/config"
	"github.com/mailboard-io/mailboard-ce/internal/hub"
	"github.com/mailboard-io/mailboard-ce/internal/metrics"
	"github.com/mailboard-io/mailboard-ce/internal/middleware"
	"github.com/mailboard-io/mailboard-ce/internal/models"
	"github.com/mailboard-io/mailboard-ce/internal/store"
)

type Server struct {
	engine *gin.Engine
	cfg    *config.Config
	hub    *hub.Hub

	jwtManager *auth.JWTManager
	authMW     *middleware.AuthMiddleware

	users  *store.UserRepository
	queues *store.QueueRepository
	audit  *store.AuditRepository
}

func NewServer(cfg *config.Config, db *sqlx.DB, eventHub *hub.Hub) *Server {
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return &Server{
		engine:     gin.New(),
		cfg:        cfg,
		hub:        eventHub,
		jwtManager: jwtManager,
		authMW:     middleware.NewAuthMiddleware(jwtManager),
		users:      store.NewUserRepository(db),
		queues:     store.NewQueueRepository(db),
		audit:      store.NewAuditRepository(db),
	}
}

func (s *Server) SetupRoutes() {
	s.engine.Use(gin.Logger(), gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
	})
	if s.cfg.Metrics.Enabled {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	s.engine.POST("/api/auth/login", s.handleLogin)

	v1 := s.engine.Group("/api/v1", s.authMW.RequireAuth())
	{
		v1.GET("/me", s.handleMe)
		v1.GET("/queues", s.authMW.RequirePermission(auth.PermissionViewQueues), s.handleListQueues)
		v1.POST("/queues/:name/suspend", s.authMW.RequirePermission(auth.PermissionManageQueue), s.handleSuspendQueue)
		v1.POST("/queues/:name/resume", s.authMW.RequirePermission(auth.PermissionManageQueue), s.handleResumeQueue)
		v1.GET("/audit", s.authMW.RequirePermission(auth.PermissionViewAudit), s.handleListAudit)
		v1.POST("/users", s.authMW.RequireMinimumRole(models.RoleAdmin), s.handleCreateUser)
	}

	s.engine.GET("/ws/events", s.authMW.RequireAuth(), s.handleEventStream)
}

// Engine exposes the underlying gin engine for serving and for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
