package reconcile

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/app"
	margin_config "github.com/code-payments/vault-server/pkg/margin/config"
	margin_vault "github.com/code-payments/vault-server/pkg/margin/vault"
	"github.com/code-payments/vault-server/pkg/metrics"
)

const (
	scheduleConfigKey = "reconcile_schedule"
	timeoutConfigKey  = "reconcile_timeout"
)

// App runs the reconcile Worker against the environment configured through
// environment variables.
type App struct {
	log *logrus.Entry

	shutdownCh chan struct{}
	stopOnce   sync.Once

	worker *Worker
}

// NewApp returns an App that's started by app.Run.
func NewApp() *App {
	return &App{
		log:        logrus.StandardLogger().WithField("type", "margin/reconcile/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *App) Init(config app.Config) error {
	ctx := context.Background()

	env, err := margin_config.Load(ctx, margin_config.WithEnvConfigs())
	if err != nil {
		return errors.Wrap(err, "error loading environment")
	}

	if env.Metrics != nil {
		ctx = metrics.NewContext(ctx, env.Metrics)
	}

	timeout, err := config.GetDuration(timeoutConfigKey, DefaultTimeout)
	if err != nil {
		return err
	}

	a.worker, err = NewWorker(
		env.NewVaultManager(margin_vault.WithEnvConfigs()),
		env.Client,
		env.Commitment,
		config.GetString(scheduleConfigKey, DefaultSchedule),
		timeout,
	)
	if err != nil {
		return err
	}

	a.worker.Start(ctx)
	return nil
}

// ShutdownChan implements app.App.ShutdownChan
func (a *App) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		if a.worker != nil {
			<-a.worker.Stop().Done()
		}
		close(a.shutdownCh)
		a.log.Info("reconcile worker stopped")
	})
}
