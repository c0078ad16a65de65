// Package store is the authoritative, transactional record of
// subscriptions, payloads and attempts. Nothing in ingestion, delivery
// or worker talks to Postgres directly.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned by single-row lookups that find nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrSubscriptionMissing is returned by CreatePayloadWithInitialAttempt
	// when the referenced subscription does not exist (the FK check in §3).
	ErrSubscriptionMissing = errors.New("store: subscription does not exist")
)

// Store wraps a pgx connection pool. All multi-row writes commit as a
// single transaction.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }
