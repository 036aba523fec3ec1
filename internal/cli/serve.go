package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritas-mfg/tobacco-aps/internal/api"
	"github.com/veritas-mfg/tobacco-aps/internal/config"
	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/orchestrator"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
	"github.com/veritas-mfg/tobacco-aps/internal/scheduler"
)

// NewServeCommand runs the HTTP API, the NATS-dispatched pipeline worker,
// and the auto-import scheduler in one process, grounded on the teacher's
// cmd/server/main.go wiring order (database, then NATS, then workers, then
// HTTP, then graceful shutdown on SIGINT/SIGTERM).
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduling worker, and auto-import scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	database.SetMaxOpenConns(cfg.DatabaseMaxConnections)
	database.SetMaxIdleConns(cfg.DatabaseMaxIdleConnections)
	database.SetConnMaxLifetime(cfg.DatabaseConnectionLifetime)

	if err := database.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("database connection established")

	if cfg.RunMigrations {
		log.Println("running database migrations...")
		if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	queries := db.New(database)

	log.Println("connecting to NATS...")
	natsManager, err := queue.NewManager(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsManager.Close()
	log.Println("NATS connection established")

	zapLogger, err := newZapLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zapLogger.Sync()

	stageLogger := orchestrator.NewStageLogger(zapLogger, queries)
	orch := orchestrator.New(queries, natsManager)

	worker := orchestrator.NewWorker(natsManager, queries, stageLogger, cfg.TaskTimeout)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start scheduling worker: %w", err)
	}
	log.Println("scheduling worker started")

	var autoImporter *scheduler.AutoImporter
	if cfg.AutoImportEnabled {
		autoImporter = scheduler.New(queries, orch, cfg.DefaultFlags)
		if err := autoImporter.Start(cfg.AutoImportCron); err != nil {
			return fmt.Errorf("failed to start auto-import scheduler: %w", err)
		}
		log.Printf("auto-import scheduler started (%s)", cfg.AutoImportCron)
		defer autoImporter.Stop()
	}

	server := api.NewServer(cfg, queries, orch, natsManager)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AppPort),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server starting on port %d (environment: %s)", cfg.AppPort, cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("stopped gracefully")
	return nil
}

func newZapLogger(format, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = lvl
	}

	return cfg.Build()
}
