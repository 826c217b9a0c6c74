package transaction

import (
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
)

// DriftContext is what instructions touching a vault's Drift positions need
// to resolve markets and remaining accounts.
type DriftContext struct {
	Registry *drift.Registry
	Resolver *drift.RemainingAccountsResolver

	// User is the vault's Drift user as last read from chain. It's optional,
	// but without it only the markets an instruction touches are loaded, and
	// Drift rejects the instruction if the user holds other positions.
	User *drift.UserAccount
}

func NewDriftContext(registry *drift.Registry, user *drift.UserAccount) *DriftContext {
	return &DriftContext{
		Registry: registry,
		Resolver: drift.NewRemainingAccountsResolver(registry),
		User:     user,
	}
}

func (c *DriftContext) remainingAccounts(readable, writable []uint16) ([]solana.AccountMeta, error) {
	resolved, err := c.Resolver.Resolve(&drift.ResolveArgs{
		User:                  c.User,
		ReadableMarketIndexes: readable,
		WritableMarketIndexes: writable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error resolving remaining accounts")
	}
	return resolved.ToAccountMetas(), nil
}

func (c *DriftContext) market(index uint16) (*drift.SpotMarket, *common.Account, error) {
	market, err := c.Registry.Get(index)
	if err != nil {
		return nil, nil, err
	}

	mint, err := common.NewAccountFromPublicKeyBytes(market.Mint)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid market mint")
	}
	return market, mint, nil
}
