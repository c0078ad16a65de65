package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/delivery"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/store"
	"github.com/webhookrelay/delivery/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New()
	cfg := config.Load()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	engine := delivery.New(cfg.DeliveryTimeout)
	w := worker.New(st, engine, cfg, logger)

	// Retention cleanup rides River's periodic job scheduler rather than
	// the claim loop above — see internal/worker/retention.go for why.
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, &worker.RetentionWorker{Store: st, Config: cfg, Logger: logger})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 1}},
		Workers:      riverWorkers,
		PeriodicJobs: []*river.PeriodicJob{worker.PeriodicRetentionJob()},
	})
	if err != nil {
		log.Fatalf("failed to create river client: %v", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		log.Fatalf("failed to start river: %v", err)
	}

	go w.Run(ctx)

	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("worker: metrics server starting")
		if err := http.ListenAndServe(cfg.MetricsAddr, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
			logger.Error("worker: metrics server error", err)
		}
	}()

	logger.Info("worker: processes started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	logger.Info("worker: shutting down")
	cancel()
	riverClient.Stop(context.Background())
	logger.Info("worker: stopped")
}
