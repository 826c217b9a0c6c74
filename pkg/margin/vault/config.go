package vault

import (
	"context"
	"time"

	"github.com/code-payments/vault-server/pkg/config"
	"github.com/code-payments/vault-server/pkg/config/env"
	"github.com/code-payments/vault-server/pkg/config/memory"
	"github.com/code-payments/vault-server/pkg/config/wrapper"
	compute_budget "github.com/code-payments/vault-server/pkg/solana/computebudget"
)

const (
	envConfigPrefix = "VAULT_MANAGER_"

	ConfirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 90 * time.Second

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = 500 * time.Millisecond

	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 0

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	MaxOperationsPerOwnerPerSecondConfigEnvName = envConfigPrefix + "MAX_OPERATIONS_PER_OWNER_PER_SECOND"
	defaultMaxOperationsPerOwnerPerSecond       = 5
)

type conf struct {
	confirmationTimeout            config.Duration
	pollInterval                   config.Duration
	computeUnitLimit               config.Uint64
	computeUnitPrice               config.Uint64
	maxOperationsPerOwnerPerSecond config.Uint64
}

// getComputeUnitLimit returns the configured limit, capped at the most a
// transaction may request. Zero leaves the compute budget unset.
func (c *conf) getComputeUnitLimit(ctx context.Context) uint32 {
	limit := c.computeUnitLimit.Get(ctx)
	if limit > compute_budget.MaxComputeUnitLimit {
		return compute_budget.MaxComputeUnitLimit
	}
	return uint32(limit)
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationTimeout:            env.NewDurationConfig(ConfirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
			pollInterval:                   env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
			computeUnitLimit:               env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
			computeUnitPrice:               env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			maxOperationsPerOwnerPerSecond: env.NewUint64Config(MaxOperationsPerOwnerPerSecondConfigEnvName, defaultMaxOperationsPerOwnerPerSecond),
		}
	}
}

type testOverrides struct {
	confirmationTimeout            time.Duration
	pollInterval                   time.Duration
	computeUnitLimit               uint64
	computeUnitPrice               uint64
	maxOperationsPerOwnerPerSecond uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationTimeout:            wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationTimeout), defaultConfirmationTimeout),
			pollInterval:                   wrapper.NewDurationConfig(memory.NewConfig(overrides.pollInterval), defaultPollInterval),
			computeUnitLimit:               wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitLimit), defaultComputeUnitLimit),
			computeUnitPrice:               wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			maxOperationsPerOwnerPerSecond: wrapper.NewUint64Config(memory.NewConfig(overrides.maxOperationsPerOwnerPerSecond), defaultMaxOperationsPerOwnerPerSecond),
		}
	}
}
