package app

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// App is a long lived background process, such as a worker that runs on a
// schedule.
//
// The lifecycle of the App is tied to the process. It's initialized before any
// work starts, and stopped when the process receives a shutdown signal.
type App interface {
	// Init initializes the application in a blocking fashion. When Init
	// returns, the application is running.
	Init(config Config) error

	// ShutdownChan returns a channel that is closed when the application shuts
	// down on its own.
	ShutdownChan() <-chan struct{}

	// Stop stops the application, allowing it to clean up any resources. When
	// Stop returns, the process exits.
	//
	// Stop should be idempotent.
	Stop()
}

var configPath = flag.String("config", "config.yaml", "configuration file path")

// Run loads the base config, initializes app and blocks until the process is
// signalled or app shuts down on its own.
func Run(app App) error {
	flag.Parse()

	config, err := loadConfig(newViper(), *configPath)
	if err != nil {
		return err
	}

	configureLogger(config)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	return run(app, config, sigCh)
}

func run(app App, config BaseConfig, sigCh <-chan os.Signal) error {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":     "app",
		"app_name": config.AppName,
	})

	if err := app.Init(config.AppConfig); err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}
	log.Info("application started")

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("interrupt received, shutting down")
	case <-app.ShutdownChan():
		log.Info("app shutdown")
	}

	stopped := make(chan struct{})
	go func() {
		app.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-time.After(config.ShutdownGracePeriod):
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func configureLogger(config BaseConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
		return
	}
	logrus.SetLevel(level)
}

func isNotExist(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && os.IsNotExist(pathErr)
}
