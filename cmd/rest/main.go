package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus-ai-be/internal/bootstrap"
	"nexus-ai-be/internal/config"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/internal/server"
	"nexus-ai-be/internal/tracer"
	"nexus-ai-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Logger
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 3. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(cfg.App, sysLogger)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 4. Database (optional, backs retrieval only)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			sysLogger.Warn("Main", "Unable to connect to database, retrieval disabled", map[string]interface{}{"error": err.Error()})
		} else {
			gormDB = db
		}
	}

	// 5. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Fatalf("Unable to build container: %v", err)
	}
	defer container.Close()

	// 6. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		sysLogger.Error("Main", "Background consumer failed to start", map[string]interface{}{"error": err.Error()})
	}

	// 7. Run Server
	srv := server.New(cfg, container, sysLogger)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("Main", "Server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("Main", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("Main", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
