package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/orderhub-dev/backend-kiosk/internal/config"
	"github.com/orderhub-dev/backend-kiosk/internal/db"
	"github.com/orderhub-dev/backend-kiosk/internal/lock"
	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/pos"
	"github.com/orderhub-dev/backend-kiosk/internal/printer"
	"github.com/orderhub-dev/backend-kiosk/internal/queue"
	"github.com/orderhub-dev/backend-kiosk/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kiosk")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "kiosk-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg.RedisURL, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	dlqStore := queue.NewStore(pool)

	posBreaker := resilience.NewBreaker(10, 0.5, 30*time.Second)
	syncer := &pos.Syncer{
		Client: pos.NewClient(cfg.POSBaseURL, cfg.POSMerchantID, cfg.POSToken, posBreaker),
		Locker: lock.Locker{R: redisClient},
		Log:    logger,
	}

	printBreaker := resilience.NewBreaker(10, 0.5, 30*time.Second)
	printHandler := &printer.Handler{
		Client: printer.NewClient(cfg.PrinterBaseURL, cfg.PrinterToken, printBreaker),
		Log:    logger,
	}

	workers := []queue.Worker{
		{
			R:           redisClient,
			Kind:        queue.KindPosSync,
			Concurrency: envInt("QUEUE_CONCURRENCY_POS", 4),
			Handler:     syncer.Handle,
			Store:       dlqStore,
			Logger:      &logger,
		},
		{
			R:           redisClient,
			Kind:        queue.KindPrintTicket,
			Concurrency: envInt("QUEUE_CONCURRENCY_PRINT", 4),
			Handler:     printHandler.Handle,
			Store:       dlqStore,
			Logger:      &logger,
		},
	}

	logger.Info().Msg("worker starting")
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w queue.Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("kind", w.Kind).Msg("worker stopped with error")
			}
		}(w)
	}
	wg.Wait()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, redisURL string, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
