package reconcile

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/solana"
)

const (
	DefaultSchedule = "@every 1m"
	DefaultTimeout  = 45 * time.Second

	metricsStructName = "margin.reconcile.worker"
)

// Reconciler settles intents whose outcome was never observed.
type Reconciler interface {
	ReconcileIntents(ctx context.Context, client solana.Client, commitment solana.Commitment) (int, error)
}

// Worker periodically reconciles unresolved intents. A pass that's still
// running when the next one is due causes that one to be skipped.
type Worker struct {
	log *logrus.Entry

	reconciler Reconciler
	client     solana.Client
	commitment solana.Commitment
	timeout    time.Duration

	schedule cron.Schedule
	cron     *cron.Cron
}

// NewWorker returns a Worker running on schedule, which is a standard cron
// expression or a descriptor such as "@every 30s". Each pass is bounded by
// timeout.
func NewWorker(reconciler Reconciler, client solana.Client, commitment solana.Commitment, schedule string, timeout time.Duration) (*Worker, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}

	log := logrus.StandardLogger().WithField("type", "margin/reconcile")
	return &Worker{
		log: log,

		reconciler: reconciler,
		client:     client,
		commitment: commitment,
		timeout:    timeout,

		schedule: parsed,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
	}, nil
}

// Start schedules passes in the background. Passes inherit ctx's values, such
// as the metrics application, but not its cancellation.
func (w *Worker) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	w.cron.Schedule(w.schedule, cron.FuncJob(func() {
		_, _ = w.RunOnce(ctx)
	}))
	w.cron.Start()

	w.log.WithField("next", w.schedule.Next(time.Now())).Info("reconcile worker started")
}

// Stop stops scheduling new passes. The returned context is done once a pass
// that's in progress completes.
func (w *Worker) Stop() context.Context {
	return w.cron.Stop()
}

// RunOnce runs a single reconciliation pass.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	ctx, endTxn := metrics.StartTransaction(ctx, metricsStructName+".RunOnce")
	defer endTxn()

	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RunOnce")
	defer tracer.End()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	resolved, err := w.reconciler.ReconcileIntents(ctx, w.client, w.commitment)
	log := w.log.WithFields(logrus.Fields{
		"method":   "RunOnce",
		"resolved": resolved,
		"duration": time.Since(start),
	})
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Warn("failure reconciling intents")
		return resolved, err
	}

	if resolved > 0 {
		log.Info("reconciled intents")
	} else {
		log.Debug("no intents reconciled")
	}
	return resolved, nil
}
