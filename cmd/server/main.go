package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/recruit/api"
	dbfs "github.com/garnizeh/recruit/db"
	"github.com/garnizeh/recruit/internal/config"
	"github.com/garnizeh/recruit/internal/db"
	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/jobs"
	"github.com/garnizeh/recruit/internal/notify"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/internal/repository/sqlite"
	"github.com/garnizeh/recruit/internal/scheduler"
	"github.com/garnizeh/recruit/internal/storage"
	"github.com/garnizeh/recruit/pkg/repository"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting recruit server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer conn.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, conn, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
	}
	store := sqlite.New(conn, logger)

	schemas, err := forms.NewSchemaLoader(ctx, store)
	if err != nil {
		log.Fatalf("Failed to load constraint schemas: %v", err)
	}

	var codes repository.OTPRepo = store
	if cfg.OTP.Store == "redis" {
		rdb, err := otp.NewRedisClient(ctx, cfg.OTP.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		codes = otp.NewRedisStore(rdb)
	}

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Mail.WebhookURL != "" {
		mailer = notify.NewWebhookMailer(cfg.Mail.WebhookURL, cfg.APITimeout)
	}

	pool := jobs.NewWorkerPool(store, notify.Handlers(mailer, cfg.Mail.From), logger, cfg.Workers.Count)
	pool.SetMaxAttempts(cfg.Workers.MaxAttempts)
	pool.Start(ctx)
	defer pool.Stop()

	otpService := otp.NewService(codes, pool, cfg.JWTSecret, cfg.OTP.Window, cfg.OTP.VerificationTTL, logger)

	resumes, err := storage.NewLocal(cfg.Uploads.Dir, forms.NewFilePolicy(cfg.Uploads.PDFOnly, cfg.Uploads.MaxBytes))
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	sched := scheduler.New(logger, scheduler.PurgeOTP(cfg.CleanupInterval, otpService.PurgeExpired, logger))
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Store:   store,
		Schemas: schemas,
		OTP:     otpService,
		Queue:   pool,
		Resumes: resumes,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("err", err))
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}

	logger.Info("server exited")
}
