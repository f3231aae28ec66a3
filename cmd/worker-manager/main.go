// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appcache "licence-service/internal/cache"
	"licence-service/internal/common/aws"
	"licence-service/internal/common/camunda"
	"licence-service/internal/common/config"
	"licence-service/internal/common/database"
	"licence-service/internal/common/logger"
	"licence-service/internal/common/observability"
	"licence-service/internal/external"
	"licence-service/internal/guard"
	"licence-service/internal/notify"
	"licence-service/internal/scheduler"
	"licence-service/internal/service"
	"licence-service/internal/store"

	rec "licence-service/internal/workers/licence/run-external-checks"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Notifier ---
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Notifications.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		var snsClient notify.SNSService
		if cfg.Notifications.AWS.SNS.Enabled {
			client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			snsClient = client
		}
		notifier = notify.NewAWSNotifier(sesClient, snsClient, cfg.Notifications.AWS.SES.FromEmail, log)
		zapLog.Info("AWS notifier initialized")
	}

	// --- Wire Lifecycle Components ---
	appStore := store.New(pg.GetDB())
	appGuard := guard.New(
		redis.GetClient(),
		appStore,
		time.Duration(cfg.Lifecycle.LockTTLSeconds)*time.Second,
		log,
	)
	pendingCache := appcache.New(
		redis.GetClient(),
		time.Duration(cfg.Lifecycle.PendingCacheTTLSecs)*time.Second,
		log,
	)
	checksScheduler := scheduler.New(zeebeClient, cfg.Camunda.ProcessID, log)
	appService := service.New(
		appStore,
		appGuard,
		pendingCache,
		checksScheduler,
		notifier,
		obs,
		log,
		cfg.Lifecycle.CardNumberMaxAttempts,
	)

	checkClient := external.NewCheckClient(
		cfg.ExternalAPI.BaseURL,
		time.Duration(cfg.ExternalAPI.TimeoutSeconds)*time.Second,
		log,
	)

	// --- Register Worker ---
	handler := rec.NewHandler(rec.LoadConfig(), appService, checkClient, obs, log)
	checksWorker := camunda.NewWorker(
		zeebeClient.GetClient(),
		rec.TaskType,
		cfg.Camunda.MaxJobsActive,
		handler,
		log,
	)
	zapLog.Info("run-external-checks worker registered")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			status := "ready"
			code := http.StatusOK
			if err := zeebeClient.HealthCheck(r.Context()); err != nil {
				status = "not ready"
				code = http.StatusServiceUnavailable
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	checksWorker.Close()
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
