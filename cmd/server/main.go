// Package main implements the tour operations API server: REST surface,
// background workers, and the operational event stream.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/walla-walla-travel/tourops/internal/app"
	"github.com/walla-walla-travel/tourops/internal/app/auth"
	"github.com/walla-walla-travel/tourops/internal/app/httpapi"
	appmetrics "github.com/walla-walla-travel/tourops/internal/app/metrics"
	"github.com/walla-walla-travel/tourops/internal/app/storage/postgres"
	"github.com/walla-walla-travel/tourops/internal/config"
	"github.com/walla-walla-travel/tourops/internal/logging"
	"github.com/walla-walla-travel/tourops/internal/middleware"
	"github.com/walla-walla-travel/tourops/internal/platform/database"
	"github.com/walla-walla-travel/tourops/internal/platform/migrations"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "env file loaded before configuration, ignored when missing")
	migrate := flag.Bool("migrate", false, "apply pending schema migrations before serving")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
	httpLog := logging.New("httpapi", cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a DSN the server runs on in-memory stores, which suits
	// demos and local development.
	var db *sql.DB
	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			appLog.Fatalf("open database: %v", err)
		}
		defer db.Close()

		if *migrate {
			if err := migrations.Apply(ctx, db); err != nil {
				appLog.Fatalf("apply migrations: %v", err)
			}
			appLog.Info("schema migrations applied")
		}

		store := postgres.New(db)
		stores = app.Stores{
			Customers: store,
			Wineries:  store,
			Fleet:     store,
			Bookings:  store,
			Proposals: store,
			Invoices:  store,
		}
		appLog.Info("using postgres stores")
	} else {
		appLog.Warn("DATABASE_URL not set, using in-memory stores")
	}

	application, err := app.New(cfg, stores, appLog)
	if err != nil {
		appLog.Fatalf("build application: %v", err)
	}

	m := appmetrics.New()
	if err := application.CountEvents(m); err != nil {
		appLog.Fatalf("wire event metrics: %v", err)
	}

	manager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		appLog.Fatalf("configure auth: %v", err)
	}
	if !manager.Enabled() {
		appLog.Warn("no users or API tokens configured, staff endpoints will reject every request")
	}

	limiter := middleware.NewRateLimiter(float64(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst, httpLog)
	limiter.StartCleanup(ctx, 0)

	handler, err := httpapi.NewHandler(application, httpapi.Config{
		Auth:        manager,
		Metrics:     m,
		DB:          db,
		Log:         httpLog,
		RateLimit:   limiter,
		CORSOrigins: cfg.CORS.ParseOrigins(),
		AuditPath:   cfg.Audit.Path,
		AuditMax:    cfg.Audit.Max,
		Version:     version,
	})
	if err != nil {
		appLog.Fatalf("build API handler: %v", err)
	}

	if err := application.Start(ctx); err != nil {
		appLog.Fatalf("start workers: %v", err)
	}
	appLog.WithField("workers", application.Workers()).Info("background workers started")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.WithField("addr", addr).WithField("version", version).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		appLog.WithError(err).Error("worker shutdown")
	}

	appLog.Info("stopped")
}
