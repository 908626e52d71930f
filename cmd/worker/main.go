package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mf-returns-service/internal/config"
	"mf-returns-service/internal/logging"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/pipeline"
	"mf-returns-service/internal/ratelimiter"
	"mf-returns-service/internal/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	logger := logging.New(logging.Options{Service: "worker"})

	appCfg, err := config.Load()
	if err != nil {
		logging.Fatal(logger, "config load", "error", err)
	}
	if err := appCfg.Validate(); err != nil {
		logging.Fatal(logger, "config validate", "error", err)
	}
	if err := appCfg.RequireDatabase(); err != nil {
		logging.Fatal(logger, "config validate", "error", err)
	}

	pool, err := storage.NewPool(ctx, storage.Config{DatabaseURL: appCfg.DatabaseURL})
	if err != nil {
		logging.Fatal(logger, "db pool", "error", err)
	}
	defer pool.Close()

	if err := pipeline.SeedTracked(ctx, pool, appCfg.TrackedSchemes); err != nil {
		logging.Fatal(logger, "seed tracked schemes", "error", err)
	}
	logger.Info("tracked schemes seeded", "count", len(appCfg.TrackedSchemes))

	rlCfg, err := appCfg.RateLimiterConfig()
	if err != nil {
		logging.Fatal(logger, "rate limiter config", "error", err)
	}
	rlCfg.Logger = logger
	rl, err := ratelimiter.New(pool, rlCfg)
	if err != nil {
		logging.Fatal(logger, "rate limiter", "error", err)
	}

	mf := mfapi.New(appCfg.MFAPIBaseURL, mfapi.WithRateLimiter(rl), mfapi.WithLogger(logger))

	runner := pipeline.NewBackfillRunner(pool, mf, appCfg.SyncStaleAfter(), logger)

	pollEvery := appCfg.SyncPollEvery()
	for {
		processed, err := runner.RunLatest(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Fatal(logger, "worker run", "error", err)
		}
		if processed {
			logger.Info("worker finished a run; waiting for next")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollEvery):
		}
	}
}
