package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mailboard-io/mailboard-ce/internal/api"
	"github.com/mailboard-io/mailboard-ce/internal/config"
	"github.com/mailboard-io/mailboard-ce/internal/hub"
	"github.com/mailboard-io/mailboard-ce/internal/sampler"
	"github.com/mailboard-io/mailboard-ce/internal/store"
)

func main() {
	configPath := os.Getenv("MAILBOARD_CONFIG")

	if err := config.Load(configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Println("WARNING: auth.jwt_secret is empty; set MAILBOARD_AUTH_JWT_SECRET in production")
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	eventHub := hub.New()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go eventHub.Run(hubCtx)

	server := api.NewServer(cfg, db, eventHub)
	server.SetupRoutes()

	if cfg.Sampler.Enabled {
		s := sampler.New(cfg.Sampler, store.NewQueueRepository(db), eventHub)
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start sampler: %v", err)
		}
		defer s.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting mailboard gateway on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
