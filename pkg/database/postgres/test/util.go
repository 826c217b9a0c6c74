package test

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/code-payments/vault-server/pkg/retry"
	"github.com/code-payments/vault-server/pkg/retry/backoff"
)

const (
	imageRepository = "postgres"
	imageTag        = "13"

	// Containers are killed after this long even if the test binary dies
	// before it cleans up.
	containerTTL = 2 * time.Minute

	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"
)

// StartPostgresDB runs a throwaway postgres container and returns a connection
// to it once it accepts queries. closeFunc removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageRepository,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}

	closeFunc = func() {
		if db != nil {
			db.Close()
		}
		pool.Purge(resource)
	}

	// Expire never fails in practice
	_ = resource.Expire(uint(containerTTL.Seconds()))

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user,
		password,
		resource.GetHostPort("5432/tcp"),
		dbname,
	)

	_, err = retry.Retry(
		func() error {
			if db == nil {
				db, err = sql.Open("pgx", dsn)
				if err != nil {
					return err
				}
			}
			return db.Ping()
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return db, closeFunc, nil
}

// Schema is the DDL a store's tests create and drop around each run. Tables
// and migrations live outside this repository, so tests carry their own copy.
type Schema struct {
	Create string
	Drop   string
}

// Run starts a postgres container with schema applied, calls setup with the
// connection, runs the package's tests and exits. It's meant to be called from
// TestMain. The returned reset func recreates the schema between tests.
func Run(m *testing.M, schema Schema, setup func(db *sql.DB, reset func())) {
	log := logrus.StandardLogger().WithField("type", "database/postgres/test")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("error creating docker pool")
		os.Exit(1)
	}

	db, closeFunc, err := StartPostgresDB(pool)
	if err != nil {
		log.WithError(err).Error("error starting postgres container")
		os.Exit(1)
	}

	if _, err := db.Exec(schema.Create); err != nil {
		log.WithError(err).Error("error creating test tables")
		closeFunc()
		os.Exit(1)
	}

	setup(db, func() {
		_, err := db.Exec(schema.Drop)
		if err == nil {
			_, err = db.Exec(schema.Create)
		}
		if err != nil {
			log.WithError(err).Error("error resetting test tables")
			closeFunc()
			os.Exit(1)
		}
	})

	code := m.Run()
	closeFunc()
	os.Exit(code)
}
