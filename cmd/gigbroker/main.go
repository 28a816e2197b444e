// cmd/gigbroker/main.go
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

	"gigbroker/internal/api"
	"gigbroker/internal/common/config"
	"gigbroker/internal/common/database"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/common/observability"
	"gigbroker/internal/feed"
	"gigbroker/internal/notify"
	"gigbroker/internal/otp"
	"gigbroker/internal/service"
	"gigbroker/internal/store"
	"gigbroker/internal/wage"
	"gigbroker/internal/worksession"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
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

	zapLog.Info("starting gigbroker",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("gigbroker")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL initialization")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected")

	// --- Init Redis with retry ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return database.PingRedis(pingCtx, rdb)
	}, 10, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected")

	// --- Init Elasticsearch with retry ---
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch client failed", zap.Error(err))
	}
	err = retryWithBackoff(func() error {
		return database.PingElasticsearch(es)
	}, 10, 2*time.Second, zapLog, "Elasticsearch initialization")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected")

	// --- Wire the engine ---
	appStore := store.NewPostgresStore(pg.DB)
	jobFeed := feed.New(
		es, rdb, appStore,
		cfg.Database.Elasticsearch.JobsIndex,
		time.Duration(cfg.Feed.CacheTTLSeconds)*time.Second,
		cfg.Feed.MaxResults,
		log,
	)
	events := notify.NewPublisher(log)
	generator := otp.NewGenerator(cfg.Otp.Digits, cfg.Otp.OtpTTL())
	challenges := otp.NewRedisChallengeStore(rdb)
	wages := wage.NewHourlyCalculator(cfg.Wage.MinimumCents)

	controller := worksession.NewController(
		appStore, challenges, generator, jobFeed, wages, events, time.Now, log,
	)
	broker := service.NewBroker(appStore, jobFeed, controller, events, time.Now, log)

	// --- Metrics endpoint ---
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("metrics listening", zap.String("address", cfg.HTTP.MetricsAddress))
		if err := http.ListenAndServe(cfg.HTTP.MetricsAddress, metricsMux); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// --- API server ---
	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.Instrument(obs, api.NewAPI(broker, log).Router()),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("api listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api shutdown failed", zap.Error(err))
	}
	zapLog.Info("gigbroker stopped")
}
