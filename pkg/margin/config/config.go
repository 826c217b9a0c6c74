package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/config"
	"github.com/code-payments/vault-server/pkg/config/env"
	"github.com/code-payments/vault-server/pkg/config/memory"
	"github.com/code-payments/vault-server/pkg/config/wrapper"
	pg "github.com/code-payments/vault-server/pkg/database/postgres"
	"github.com/code-payments/vault-server/pkg/jupiter"
	"github.com/code-payments/vault-server/pkg/margin/common"
	margin_data "github.com/code-payments/vault-server/pkg/margin/data"
	"github.com/code-payments/vault-server/pkg/margin/transaction"
	margin_vault "github.com/code-payments/vault-server/pkg/margin/vault"
	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
)

const (
	envConfigPrefix = "MARGIN_"

	ClusterConfigEnvName = envConfigPrefix + "CLUSTER"
	defaultCluster       = "devnet"

	SolanaEndpointConfigEnvName = envConfigPrefix + "SOLANA_ENDPOINT"
	defaultSolanaEndpoint       = string(solana.EnvironmentDev)

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	JupiterBaseUrlConfigEnvName = envConfigPrefix + "JUPITER_BASE_URL"
	defaultJupiterBaseUrl       = jupiter.DefaultApiBaseUrl

	SwapSlippageBpsConfigEnvName = envConfigPrefix + "SWAP_SLIPPAGE_BPS"
	defaultSwapSlippageBps       = 50

	SwapMaxAccountsConfigEnvName = envConfigPrefix + "SWAP_MAX_ACCOUNTS"
	defaultSwapMaxAccounts       = 40

	LookupTableCacheBudgetConfigEnvName = envConfigPrefix + "LOOKUP_TABLE_CACHE_BUDGET"
	defaultLookupTableCacheBudget       = 1000

	AppNameConfigEnvName = envConfigPrefix + "APP_NAME"
	defaultAppName       = "margin-vault-server"

	NewRelicLicenseKeyConfigEnvName = envConfigPrefix + "NEW_RELIC_LICENSE_KEY"
	defaultNewRelicLicenseKey       = ""

	DbHostConfigEnvName = envConfigPrefix + "DB_HOST"
	defaultDbHost       = ""

	DbPortConfigEnvName = envConfigPrefix + "DB_PORT"
	defaultDbPort       = 5432

	DbUserConfigEnvName = envConfigPrefix + "DB_USER"
	defaultDbUser       = "postgres"

	DbPasswordConfigEnvName = envConfigPrefix + "DB_PASSWORD"
	defaultDbPassword       = ""

	DbNameConfigEnvName = envConfigPrefix + "DB_NAME"
	defaultDbName       = "margin"

	DbAuthConfigEnvName = envConfigPrefix + "DB_AUTH"
	defaultDbAuth       = DbAuthPassword

	DbMaxOpenConnectionsConfigEnvName = envConfigPrefix + "DB_MAX_OPEN_CONNECTIONS"
	defaultDbMaxOpenConnections       = 20

	DbMaxIdleConnectionsConfigEnvName = envConfigPrefix + "DB_MAX_IDLE_CONNECTIONS"
	defaultDbMaxIdleConnections       = 5
)

const (
	DbAuthPassword = "password"
	DbAuthAwsIam   = "aws_iam"
)

type conf struct {
	cluster                config.String
	solanaEndpoint         config.String
	commitment             config.String
	jupiterBaseUrl         config.String
	swapSlippageBps        config.Uint64
	swapMaxAccounts        config.Uint64
	lookupTableCacheBudget config.Uint64

	appName            config.String
	newRelicLicenseKey config.String

	dbHost               config.String
	dbPort               config.Uint64
	dbUser               config.String
	dbPassword           config.String
	dbName               config.String
	dbAuth               config.String
	dbMaxOpenConnections config.Uint64
	dbMaxIdleConnections config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			cluster:                env.NewStringConfig(ClusterConfigEnvName, defaultCluster),
			solanaEndpoint:         env.NewStringConfig(SolanaEndpointConfigEnvName, defaultSolanaEndpoint),
			commitment:             env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			jupiterBaseUrl:         env.NewStringConfig(JupiterBaseUrlConfigEnvName, defaultJupiterBaseUrl),
			swapSlippageBps:        env.NewUint64Config(SwapSlippageBpsConfigEnvName, defaultSwapSlippageBps),
			swapMaxAccounts:        env.NewUint64Config(SwapMaxAccountsConfigEnvName, defaultSwapMaxAccounts),
			lookupTableCacheBudget: env.NewUint64Config(LookupTableCacheBudgetConfigEnvName, defaultLookupTableCacheBudget),

			appName:            env.NewStringConfig(AppNameConfigEnvName, defaultAppName),
			newRelicLicenseKey: env.NewStringConfig(NewRelicLicenseKeyConfigEnvName, defaultNewRelicLicenseKey),

			dbHost:               env.NewStringConfig(DbHostConfigEnvName, defaultDbHost),
			dbPort:               env.NewUint64Config(DbPortConfigEnvName, defaultDbPort),
			dbUser:               env.NewStringConfig(DbUserConfigEnvName, defaultDbUser),
			dbPassword:           env.NewStringConfig(DbPasswordConfigEnvName, defaultDbPassword),
			dbName:               env.NewStringConfig(DbNameConfigEnvName, defaultDbName),
			dbAuth:               env.NewStringConfig(DbAuthConfigEnvName, defaultDbAuth),
			dbMaxOpenConnections: env.NewUint64Config(DbMaxOpenConnectionsConfigEnvName, defaultDbMaxOpenConnections),
			dbMaxIdleConnections: env.NewUint64Config(DbMaxIdleConnectionsConfigEnvName, defaultDbMaxIdleConnections),
		}
	}
}

type testOverrides struct {
	cluster         string
	solanaEndpoint  string
	commitment      string
	swapSlippageBps uint64
	dbAuth          string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			cluster:                wrapper.NewStringConfig(memory.NewConfigUnlessZero(overrides.cluster), defaultCluster),
			solanaEndpoint:         wrapper.NewStringConfig(memory.NewConfigUnlessZero(overrides.solanaEndpoint), defaultSolanaEndpoint),
			commitment:             wrapper.NewStringConfig(memory.NewConfigUnlessZero(overrides.commitment), defaultCommitment),
			jupiterBaseUrl:         wrapper.NewStringConfig(memory.NewConfig(nil), defaultJupiterBaseUrl),
			swapSlippageBps:        wrapper.NewUint64Config(memory.NewConfigUnlessZero(overrides.swapSlippageBps), defaultSwapSlippageBps),
			swapMaxAccounts:        wrapper.NewUint64Config(memory.NewConfig(nil), defaultSwapMaxAccounts),
			lookupTableCacheBudget: wrapper.NewUint64Config(memory.NewConfig(nil), defaultLookupTableCacheBudget),

			appName:            wrapper.NewStringConfig(memory.NewConfig(nil), defaultAppName),
			newRelicLicenseKey: wrapper.NewStringConfig(memory.NewConfig(nil), defaultNewRelicLicenseKey),

			dbHost:               wrapper.NewStringConfig(memory.NewConfig(nil), defaultDbHost),
			dbPort:               wrapper.NewUint64Config(memory.NewConfig(nil), defaultDbPort),
			dbUser:               wrapper.NewStringConfig(memory.NewConfig(nil), defaultDbUser),
			dbPassword:           wrapper.NewStringConfig(memory.NewConfig(nil), defaultDbPassword),
			dbName:               wrapper.NewStringConfig(memory.NewConfig(nil), defaultDbName),
			dbAuth:               wrapper.NewStringConfig(memory.NewConfigUnlessZero(overrides.dbAuth), defaultDbAuth),
			dbMaxOpenConnections: wrapper.NewUint64Config(memory.NewConfig(nil), defaultDbMaxOpenConnections),
			dbMaxIdleConnections: wrapper.NewUint64Config(memory.NewConfig(nil), defaultDbMaxIdleConnections),
		}
	}
}

// Environment is the cluster the vault service runs against, along with the
// clients it reaches it through.
type Environment struct {
	Client     solana.Client
	Commitment solana.Commitment

	// Metrics is nil unless a New Relic license key is configured. Inject it
	// with metrics.NewContext so operations are traced.
	Metrics *newrelic.Application

	// Data is backed by postgres when a database host is configured, and by
	// memory otherwise.
	Data margin_data.DatabaseData

	VaultConfig *common.VaultConfig
	Registry    *drift.Registry
	Router      transaction.Router

	SwapConfig *transaction.JupiterRouterConfig
}

// Load builds the Environment. The database, when configured, is connected to
// here. The cluster and Jupiter aren't dialed until the first request.
func Load(ctx context.Context, configProvider ConfigProvider) (*Environment, error) {
	conf := configProvider()

	commitment, err := solana.CommitmentFromString(conf.commitment.Get(ctx))
	if err != nil {
		return nil, err
	}

	usdcMint := common.GetUsdcMint(conf.cluster.Get(ctx))

	registry, err := drift.NewDefaultRegistry(usdcMint.PublicKey().ToBytes())
	if err != nil {
		return nil, errors.Wrap(err, "error creating spot market registry")
	}

	slippageBps := conf.swapSlippageBps.Get(ctx)
	if slippageBps > 10_000 {
		return nil, errors.Errorf("slippage of %d bps exceeds 100%%", slippageBps)
	}

	maxAccounts := conf.swapMaxAccounts.Get(ctx)
	if maxAccounts > 255 {
		return nil, errors.Errorf("max swap accounts of %d exceeds 255", maxAccounts)
	}

	metricsProvider, err := loadMetrics(ctx, conf)
	if err != nil {
		return nil, err
	}

	data, err := loadData(ctx, conf)
	if err != nil {
		return nil, err
	}

	client := solana.New(conf.solanaEndpoint.Get(ctx))
	swapConfig := &transaction.JupiterRouterConfig{
		SlippageBps: uint32(slippageBps),
		MaxAccounts: uint8(maxAccounts),
	}

	return &Environment{
		Client:     client,
		Commitment: commitment,

		Metrics: metricsProvider,
		Data:    data,

		VaultConfig: &common.VaultConfig{
			UsdcMint: usdcMint,
		},
		Registry: registry,
		Router: transaction.NewJupiterRouter(
			jupiter.NewClient(conf.jupiterBaseUrl.Get(ctx)),
			transaction.NewLookupTableResolver(client, commitment, int(conf.lookupTableCacheBudget.Get(ctx))),
			swapConfig,
		),

		SwapConfig: swapConfig,
	}, nil
}

// NewVaultManager returns a vault.Manager operating on this environment.
func (e *Environment) NewVaultManager(configProvider margin_vault.ConfigProvider) *margin_vault.Manager {
	return margin_vault.NewManager(e.Data, e.Client, e.VaultConfig, e.Registry, e.Router, configProvider)
}

func loadMetrics(ctx context.Context, conf *conf) (*newrelic.Application, error) {
	licenseKey := conf.newRelicLicenseKey.Get(ctx)
	if len(licenseKey) == 0 {
		return nil, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(conf.appName.Get(ctx)),
		newrelic.ConfigLicense(licenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating new relic application")
	}

	logrus.SetFormatter(metrics.NewLogFormatter(app, &logrus.JSONFormatter{}))
	return app, nil
}

func loadData(ctx context.Context, conf *conf) (margin_data.DatabaseData, error) {
	dbConfig := &pg.Config{
		User:               conf.dbUser.Get(ctx),
		Password:           conf.dbPassword.Get(ctx),
		Host:               conf.dbHost.Get(ctx),
		Port:               int(conf.dbPort.Get(ctx)),
		DbName:             conf.dbName.Get(ctx),
		MaxOpenConnections: int(conf.dbMaxOpenConnections.Get(ctx)),
		MaxIdleConnections: int(conf.dbMaxIdleConnections.Get(ctx)),
	}

	switch auth := conf.dbAuth.Get(ctx); auth {
	case DbAuthPassword:
	case DbAuthAwsIam:
		if dbConfig.Host == "" {
			break
		}

		awsConfig, err := external.LoadDefaultAWSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "error loading aws config")
		}
		dbConfig.AwsConfig = &awsConfig
	default:
		return nil, errors.Errorf("unsupported database auth %q", auth)
	}

	if dbConfig.Host == "" {
		logrus.StandardLogger().WithField("type", "margin/config").Warn("no database host configured, records are kept in memory")
		return margin_data.NewTestDatabaseProvider(), nil
	}

	data, err := margin_data.NewDatabaseProvider(ctx, dbConfig)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to database")
	}
	return data, nil
}
