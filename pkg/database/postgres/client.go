package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	connMaxIdleTime = time.Hour
	connMaxLifetime = time.Hour
)

type Config struct {
	User     string
	Password string
	Host     string
	Port     int
	DbName   string

	MaxOpenConnections int
	MaxIdleConnections int

	// AwsConfig switches authentication to short-lived RDS IAM tokens, in
	// which case Password is ignored. Only provisioned clusters support it.
	AwsConfig *aws.Config
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, config *Config) (*sql.DB, error) {
	password := config.Password
	if config.AwsConfig != nil {
		token, err := buildIamAuthToken(config)
		if err != nil {
			return nil, errors.Wrap(err, "error building rds auth token")
		}
		password = token
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s",
		url.PathEscape(config.User),
		url.PathEscape(password),
		hostPort(config),
		url.PathEscape(config.DbName),
	)
	if config.AwsConfig == nil {
		// todo: enable ssl once the cluster certificate is distributed
		dsn += "?sslmode=disable"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error pinging database")
	}
	return db, nil
}

func buildIamAuthToken(config *Config) (string, error) {
	rdsClient := rds.New(*config.AwsConfig)
	return rdsutils.BuildAuthToken(hostPort(config), rdsClient.Region, config.User, rdsClient.Credentials)
}

func hostPort(config *Config) string {
	return fmt.Sprintf("%s:%d", config.Host, config.Port)
}
