package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mf-returns-service/internal/analytics"
	"mf-returns-service/internal/api"
	"mf-returns-service/internal/calculator"
	"mf-returns-service/internal/catalog"
	"mf-returns-service/internal/config"
	"mf-returns-service/internal/logging"
	"mf-returns-service/internal/mfapi"
	"mf-returns-service/internal/ratelimiter"
	"mf-returns-service/internal/storage"
)

func main() {
	ctx := context.Background()

	logger := logging.New(logging.Options{Service: "api"})

	appCfg, err := config.Load()
	if err != nil {
		logging.Fatal(logger, "config load", "error", err)
	}
	if err := appCfg.Validate(); err != nil {
		logging.Fatal(logger, "config validate", "error", err)
	}

	var pool *pgxpool.Pool
	mfOpts := []mfapi.Option{mfapi.WithLogger(logger)}
	if appCfg.DatabaseURL != "" {
		pool, err = storage.NewPool(ctx, storage.Config{DatabaseURL: appCfg.DatabaseURL})
		if err != nil {
			logging.Fatal(logger, "db pool", "error", err)
		}
		defer pool.Close()

		rlCfg, err := appCfg.RateLimiterConfig()
		if err != nil {
			logging.Fatal(logger, "rate limiter config", "error", err)
		}
		rlCfg.Logger = logger
		rl, err := ratelimiter.New(pool, rlCfg)
		if err != nil {
			logging.Fatal(logger, "rate limiter", "error", err)
		}
		mfOpts = append(mfOpts, mfapi.WithRateLimiter(rl))
	}
	mf := mfapi.New(appCfg.MFAPIBaseURL, mfOpts...)

	dir, err := catalog.New(mf, appCfg.CatalogTTL(), appCfg.Catalog.Size)
	if err != nil {
		logging.Fatal(logger, "catalog", "error", err)
	}

	var src calculator.Source = mf
	if appCfg.NavSource == config.NavSourcePostgres {
		src = storage.NewNavStore(pool)
	}
	calc := calculator.New(src, dir, calculator.Options{
		Valuation:   analytics.Valuation(appCfg.Simulation.Valuation),
		Step:        analytics.Step(appCfg.Rolling.Step),
		MaxFunds:    appCfg.Ranking.MaxFunds,
		Concurrency: appCfg.Ranking.Concurrency,
		Logger:      logger,
	})

	srv := api.NewServer(api.Deps{
		Calc:        calc,
		Directory:   dir,
		Pool:        pool,
		CORSOrigins: appCfg.CORSOrigins,
		Logger:      logger,
	})

	go func() {
		logger.Info("api listening", "addr", appCfg.HTTPAddr, "nav_source", appCfg.NavSource)
		if err := srv.ListenAndServe(appCfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(logger, "listen", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
}
