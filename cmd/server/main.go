package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coopfin/internal/api/routes"
	"coopfin/internal/config"
	"coopfin/internal/logs"
	"coopfin/internal/models"
	"coopfin/internal/ratelimit"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logs.Logger.Fatalf("Failed to load config: %v", err)
	}

	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	// Initialize database
	if err := models.InitDB(cfg); err != nil {
		logs.Logger.Fatalf("Failed to initialize database: %v", err)
	}
	if err := models.SeedDefaults(); err != nil {
		logs.Logger.Fatalf("Failed to seed defaults: %v", err)
	}

	// Create default administrator if database is empty
	tokens := services.NewTokenService(cfg)
	authService := services.NewAuthService(cfg, tokens, ratelimit.Unlimited{})
	if err := authService.CreateDefaultAdmin(); err != nil {
		logs.Logger.Warnf("Failed to create default administrator: %v", err)
	}

	// Audit recorder; drained on shutdown
	recorder := services.NewRecorder(cfg.Audit.BufferSize)
	defer recorder.Close()

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	r := gin.Default()
	routes.SetupRoutes(r, cfg, recorder)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logs.Logger.Infof("Starting cooperative portal server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logs.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Logger.Errorf("Server shutdown failed: %v", err)
	}
}
