// Package worker implements the polling loop: claim a batch of due
// attempts, fan them out to the delivery engine in bounded chunks, and
// write back the resulting state transition.
package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/delivery"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/metrics"
	"github.com/webhookrelay/delivery/internal/model"
	"github.com/webhookrelay/delivery/internal/store"
)

type Worker struct {
	Store  *store.Store
	Engine *delivery.Engine
	Config *config.Config
	Logger logging.Logger
}

func New(s *store.Store, e *delivery.Engine, cfg *config.Config, logger logging.Logger) *Worker {
	return &Worker{Store: s, Engine: e, Config: cfg, Logger: logger}
}

// Run drives the loop until ctx is cancelled. It never returns an error:
// per §7's propagation policy, every exception in a cycle is logged and
// the loop sleeps and continues rather than dying.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Config.PollingInterval)
	defer ticker.Stop()

	reclaimTicker := time.NewTicker(w.Config.ClaimTimeout)
	defer reclaimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("worker: shutdown signal received, finishing in-flight work")
			return
		case <-reclaimTicker.C:
			w.reclaimStuck(ctx)
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *Worker) reclaimStuck(ctx context.Context) {
	n, err := w.Store.ReclaimStuckAttempts(ctx, time.Now().Add(-w.Config.ClaimTimeout))
	if err != nil {
		w.Logger.Error("worker: reclaim stuck attempts", err)
		return
	}
	if n > 0 {
		w.Logger.WithField("count", n).Warn("worker: reclaimed stuck attempts")
	}
}

// cycle runs one claim-dispatch-write iteration. A panic or error inside
// it never escapes to Run: every failure path here logs and returns.
func (w *Worker) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.WithField("recover", r).Error("worker: cycle panicked", errors.New("recovered panic"))
		}
	}()

	claimed, err := w.Store.ClaimDueAttempts(ctx, w.Config.BatchSize, time.Now(), w.Config.MaxRetryAttempts)
	if err != nil {
		w.Logger.Error("worker: claim due attempts", err)
		return
	}
	metrics.ClaimBatchSize.Observe(float64(len(claimed)))
	if len(claimed) == 0 {
		return
	}

	for start := 0; start < len(claimed); start += w.Config.ChunkSize {
		end := start + w.Config.ChunkSize
		if end > len(claimed) {
			end = len(claimed)
		}
		w.dispatchChunk(ctx, claimed[start:end])
	}
}

// dispatchChunk delivers every claim in the chunk concurrently and waits
// for the whole chunk before the caller moves to the next one, bounding
// simultaneous outbound sockets to ChunkSize (§4.5 step 2).
func (w *Worker) dispatchChunk(ctx context.Context, chunk []model.ClaimedAttempt) {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunk {
		c := c
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					w.Logger.WithField("recover", r).Error("worker: delivery panicked", errors.New("recovered panic"))
				}
			}()
			w.deliverAndApply(gctx, c)
			return nil
		})
	}
	_ = g.Wait() // deliverAndApply never returns an error; Wait only joins the goroutines.
}

func (w *Worker) deliverAndApply(ctx context.Context, claim model.ClaimedAttempt) {
	start := time.Now()
	outcome, err := w.Engine.Deliver(ctx, delivery.Request{
		TargetURL: claim.Subscription.TargetURL,
		SecretKey: claim.Subscription.SecretKey,
		EventType: claim.Payload.EventType,
		Body:      claim.Payload.Body,
	})
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		w.Logger.Error("worker: delivery engine error", err)
		return
	}
	metrics.DeliveryAttemptsTotal.WithLabelValues(string(outcome.Status)).Inc()
	if err := w.ApplyOutcome(ctx, claim.Attempt, outcome); err != nil {
		w.Logger.Error("worker: apply outcome", err)
	}
}

// ApplyOutcome implements the state transition of §4.4's "Post-delivery
// state transition" paragraph. Exported so tests can drive a single
// claim-deliver-apply step without running the full polling loop.
func (w *Worker) ApplyOutcome(ctx context.Context, attempt model.Attempt, outcome delivery.Outcome) error {
	switch outcome.Status {
	case model.StatusSuccess:
		_, err := w.Store.UpdateAttempt(ctx, attempt.ID, store.UpdateAttemptInput{
			Status:     model.StatusSuccess,
			StatusCode: outcome.StatusCode,
			ClearNext:  true,
		})
		return err

	case model.StatusFailedAttempt:
		if attempt.AttemptNumber >= w.Config.MaxRetryAttempts {
			_, err := w.Store.UpdateAttempt(ctx, attempt.ID, store.UpdateAttemptInput{
				Status:       model.StatusFailure,
				StatusCode:   outcome.StatusCode,
				ErrorDetails: &outcome.ErrorDetails,
				ClearNext:    true,
			})
			return err
		}
		updated, err := w.Store.UpdateAttempt(ctx, attempt.ID, store.UpdateAttemptInput{
			Status:       model.StatusFailedAttempt,
			StatusCode:   outcome.StatusCode,
			ErrorDetails: &outcome.ErrorDetails,
			ClearNext:    true,
		})
		if err != nil {
			return err
		}
		nextAttemptAt := time.Now().Add(w.Config.BackoffFor(updated.AttemptNumber + 1))
		_, err = w.Store.CreateNextAttempt(ctx, updated, nextAttemptAt)
		return err

	default: // model.StatusFailure
		_, err := w.Store.UpdateAttempt(ctx, attempt.ID, store.UpdateAttemptInput{
			Status:       model.StatusFailure,
			StatusCode:   outcome.StatusCode,
			ErrorDetails: &outcome.ErrorDetails,
			ClearNext:    true,
		})
		return err
	}
}
