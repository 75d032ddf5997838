// cmd/pipeline-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"placement-pipeline/internal/common/aws"
	"placement-pipeline/internal/common/config"
	"placement-pipeline/internal/common/database"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/common/observability"
	"placement-pipeline/internal/notify"
	"placement-pipeline/internal/pipeline/assessment"
	"placement-pipeline/internal/pipeline/engine"
	"placement-pipeline/internal/pipeline/random"
	"placement-pipeline/internal/pipeline/scheduler"
	"placement-pipeline/internal/repository/postgres"
	"placement-pipeline/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline server...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := postgres.RunMigrations(pg.GetDB()); err != nil {
		zapLog.Fatal("migrations failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL ready")

	// --- Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis ready")

	// --- Notification delivery ---
	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		smsSender = snsClient
	}

	emitter := notify.NewRedisEmitter(rdb.GetClient(), cfg.Notifications.Queue, log)
	dispatcher := notify.NewDispatcher(rdb.GetClient(), cfg.Notifications, emailSender, smsSender, log)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			zapLog.Error("dispatcher stopped unexpectedly", zap.Error(err))
		}
	}()

	// --- Core wiring ---
	db := pg.GetDB()
	eng := engine.New(
		postgres.NewApplicationRepository(db),
		postgres.NewJobRepository(db),
		scheduler.New(postgres.NewInterviewerRepository(db), cfg.Pipeline.CapacityCeiling, log),
		assessment.NewEngine(postgres.NewAssessmentRepository(db), random.New(), cfg.Assessment, log),
		emitter,
		cfg.Pipeline.MaxTransitionRetries,
		log,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(eng, log).Handler(),
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	go func() {
		zapLog.Info("metrics endpoint listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("api listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
