package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/webhookrelay/delivery/internal/adminauth"
	"github.com/webhookrelay/delivery/internal/cache"
	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/httpserver"
	"github.com/webhookrelay/delivery/internal/ingestion"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/store"
	"github.com/webhookrelay/delivery/internal/subscriptions"
)

func main() {
	ctx := context.Background()
	logger := logging.New()
	cfg := config.Load()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis url: %v", err)
	}
	defer redisClient.Close()

	st := store.New(pool)
	ch := cache.New(redisClient)

	ingestionHandler := ingestion.New(st, ch, logger)
	subscriptionsHandler := subscriptions.New(st, ch, logger)
	adminHandler := adminauth.NewHandler(st, cfg.AdminJWTSecret)
	authMiddleware := &adminauth.Middleware{Secret: cfg.AdminJWTSecret}

	handler := httpserver.New(httpserver.Dependencies{
		Ingestion:      ingestionHandler,
		Subscriptions:  subscriptionsHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
	})

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		logger.WithField("addr", cfg.ServerAddr).Info("api: server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	logger.Info("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}
	logger.Info("api: stopped")
}
