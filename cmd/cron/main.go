package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"mf-returns-service/internal/config"
	"mf-returns-service/internal/db"
	"mf-returns-service/internal/logging"
	"mf-returns-service/internal/pipeline"
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

	logger := logging.New(logging.Options{Service: "cron"})

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

	sched := appCfg.Sync.Cron
	loc := appCfg.SyncLocation()

	enqueue := func() {
		runID, err := pipeline.Enqueue(ctx, pool, db.RunTypeIncremental)
		switch {
		case errors.Is(err, pipeline.ErrRunActive):
			logger.Info("incremental sync skipped; run active", "run_id", runID)
		case err != nil:
			logger.Error("enqueue incremental", "error", err)
		default:
			logger.Info("incremental sync enqueued", "run_id", runID)
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(sched, enqueue); err != nil {
		logging.Fatal(logger, "cron schedule", "error", err, "schedule", sched)
	}
	c.Start()
	defer c.Stop()

	enqueue()

	<-ctx.Done()
}
