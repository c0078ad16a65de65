package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/delivery"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/model"
	"github.com/webhookrelay/delivery/internal/store"
	"github.com/webhookrelay/delivery/internal/worker"
	"github.com/webhookrelay/delivery/migrations"
)

// TestHappyPathEndToEnd covers a subscription with no secret and no
// event filter, a target that returns 200 on the first try, and exactly
// one SUCCESS attempt.
func TestHappyPathEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a postgres testcontainer")
	}
	ctx := context.Background()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()
	st := store.New(pool)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	sub, err := st.CreateSubscription(ctx, store.CreateSubscriptionInput{
		AccountID: seedAccount(t, ctx, pool),
		TargetURL: target.URL,
	})
	require.NoError(t, err)

	payload, _, err := st.CreatePayloadWithInitialAttempt(ctx, sub.ID, "", []byte(`{"hello":"world"}`))
	require.NoError(t, err)

	cfg := testConfig()
	w := worker.New(st, delivery.New(cfg.DeliveryTimeout), cfg, logging.New())
	runOneCycle(t, ctx, w)

	attempts, err := st.ListAttemptsByPayload(ctx, payload.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, model.StatusSuccess, attempts[0].Status)
	require.Equal(t, 1, attempts[0].AttemptNumber)
	require.NotNil(t, attempts[0].StatusCode)
	require.Equal(t, 200, *attempts[0].StatusCode)
}

// TestRetryThenSucceedEndToEnd covers a target that returns 503 twice
// then 200; the payload ends with three attempts, the first two
// FAILED_ATTEMPT/503 and the third SUCCESS/200.
func TestRetryThenSucceedEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a postgres testcontainer")
	}
	ctx := context.Background()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()
	st := store.New(pool)

	var calls int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	sub, err := st.CreateSubscription(ctx, store.CreateSubscriptionInput{
		AccountID: seedAccount(t, ctx, pool),
		TargetURL: target.URL,
	})
	require.NoError(t, err)

	payload, _, err := st.CreatePayloadWithInitialAttempt(ctx, sub.ID, "", []byte(`{"hello":"world"}`))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.RetryIntervals = []config.RetryInterval{{AttemptNumber: 1, Wait: 0}, {AttemptNumber: 2, Wait: 0}, {AttemptNumber: 3, Wait: 0}}
	w := worker.New(st, delivery.New(cfg.DeliveryTimeout), cfg, logging.New())

	for i := 0; i < 3; i++ {
		runOneCycle(t, ctx, w)
	}

	attempts, err := st.ListAttemptsByPayload(ctx, payload.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	require.Equal(t, model.StatusFailedAttempt, attempts[0].Status)
	require.Equal(t, model.StatusFailedAttempt, attempts[1].Status)
	require.Equal(t, model.StatusSuccess, attempts[2].Status)
}

// TestTerminalFailureEndToEnd covers a target that returns a
// non-retryable 404, so delivery ends after exactly one FAILURE attempt,
// no retries.
func TestTerminalFailureEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a postgres testcontainer")
	}
	ctx := context.Background()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()
	st := store.New(pool)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer target.Close()

	sub, err := st.CreateSubscription(ctx, store.CreateSubscriptionInput{
		AccountID: seedAccount(t, ctx, pool),
		TargetURL: target.URL,
	})
	require.NoError(t, err)

	payload, _, err := st.CreatePayloadWithInitialAttempt(ctx, sub.ID, "", []byte(`{"hello":"world"}`))
	require.NoError(t, err)

	cfg := testConfig()
	w := worker.New(st, delivery.New(cfg.DeliveryTimeout), cfg, logging.New())
	runOneCycle(t, ctx, w)

	attempts, err := st.ListAttemptsByPayload(ctx, payload.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, model.StatusFailure, attempts[0].Status)
	require.NotNil(t, attempts[0].StatusCode)
	require.Equal(t, 404, *attempts[0].StatusCode)
}

// TestExhaustRetriesEndToEnd covers a target that always returns 500, so
// the payload climbs through every retry and the final attempt is
// promoted to terminal FAILURE once MaxRetryAttempts is reached.
func TestExhaustRetriesEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a postgres testcontainer")
	}
	ctx := context.Background()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()
	st := store.New(pool)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	sub, err := st.CreateSubscription(ctx, store.CreateSubscriptionInput{
		AccountID: seedAccount(t, ctx, pool),
		TargetURL: target.URL,
	})
	require.NoError(t, err)

	payload, _, err := st.CreatePayloadWithInitialAttempt(ctx, sub.ID, "", []byte(`{"hello":"world"}`))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.MaxRetryAttempts = 3
	cfg.RetryIntervals = []config.RetryInterval{{AttemptNumber: 1, Wait: 0}, {AttemptNumber: 2, Wait: 0}, {AttemptNumber: 3, Wait: 0}}
	w := worker.New(st, delivery.New(cfg.DeliveryTimeout), cfg, logging.New())

	for i := 0; i < 3; i++ {
		runOneCycle(t, ctx, w)
	}

	attempts, err := st.ListAttemptsByPayload(ctx, payload.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	require.Equal(t, model.StatusFailedAttempt, attempts[0].Status)
	require.Equal(t, model.StatusFailedAttempt, attempts[1].Status)
	require.Equal(t, model.StatusFailure, attempts[2].Status, "the third and final attempt should be promoted to terminal failure")
}

func runOneCycle(t *testing.T, ctx context.Context, w *worker.Worker) {
	t.Helper()
	claimed, err := w.Store.ClaimDueAttempts(ctx, w.Config.BatchSize, time.Now(), w.Config.MaxRetryAttempts)
	require.NoError(t, err)
	for _, c := range claimed {
		outcome, err := w.Engine.Deliver(ctx, delivery.Request{
			TargetURL: c.Subscription.TargetURL,
			SecretKey: c.Subscription.SecretKey,
			EventType: c.Payload.EventType,
			Body:      c.Payload.Body,
		})
		require.NoError(t, err)
		require.NoError(t, w.ApplyOutcome(ctx, c.Attempt, outcome))
	}
	time.Sleep(10 * time.Millisecond) // let next_attempt_at elapse before a follow-up cycle
}

func testConfig() *config.Config {
	return &config.Config{
		MaxRetryAttempts: 5,
		RetryIntervals:   []config.RetryInterval{{AttemptNumber: 1, Wait: 0}},
		DeliveryTimeout:  2 * time.Second,
		BatchSize:        50,
		PollingInterval:  time.Second,
		ChunkSize:        20,
		ClaimTimeout:     time.Minute,
	}
}

func seedAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()
	st := store.New(pool)
	acct, err := st.CreateAccount(ctx, fmt.Sprintf("acct-%d@example.com", time.Now().UnixNano()), "hash")
	require.NoError(t, err)
	return acct.ID
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16"),
		postgres.WithDatabase("webhooks_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)

	schemaSQL, err := migrations.FS.ReadFile("0001_init.up.sql")
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(schemaSQL))
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup
}
