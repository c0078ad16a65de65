package worker

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"github.com/webhookrelay/delivery/internal/config"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/metrics"
	"github.com/webhookrelay/delivery/internal/store"
)

// RetentionArgs carries nothing: there is exactly one retention sweep and
// it always runs against the same configured horizon.
type RetentionArgs struct{}

func (RetentionArgs) Kind() string { return "retention_cleanup" }

// RetentionWorker is a river.Worker that runs Store.DeleteAttemptsOlderThan
// on the schedule River's periodic job scheduler drives it on, rather
// than through the custom claim loop in worker.go — retention is a maintenance
// sweep, not a delivery, so it doesn't need the bespoke claim/backoff
// machinery the rest of this package exists for.
type RetentionWorker struct {
	river.WorkerDefaults[RetentionArgs]
	Store  *store.Store
	Config *config.Config
	Logger logging.Logger
}

func (rw *RetentionWorker) Work(ctx context.Context, job *river.Job[RetentionArgs]) error {
	threshold := time.Now().Add(-time.Duration(rw.Config.LogRetentionHours) * time.Hour)
	n, err := rw.Store.DeleteAttemptsOlderThan(ctx, threshold)
	if err != nil {
		return err
	}
	metrics.RetentionDeletedTotal.Add(float64(n))
	rw.Logger.WithField("deleted", n).Info("worker: retention sweep complete")
	return nil
}

// PeriodicRetentionJob schedules the sweep once per hour, per §4.5 step 4.
func PeriodicRetentionJob() *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return RetentionArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: false},
	)
}
