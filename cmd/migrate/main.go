package main

import (
	"context"
	"errors"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/store"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	if err := runSchemaMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to run schema migrations: %v", err)
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	// River's own internal tables (job queue, periodic-job leader
	// election) are migrated separately from the delivery schema above,
	// since they are owned by the retention job's scheduler, not by this
	// service's own migrations.
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		log.Fatalf("failed to create River migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		log.Fatalf("failed to run River migrations: %v", err)
	}

	log.Println("all migrations completed successfully")
}

func runSchemaMigrations(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
