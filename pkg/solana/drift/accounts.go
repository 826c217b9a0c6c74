package drift

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// Accounts are the fixed Drift accounts an instruction touching a vault's
// user needs, independent of the remaining accounts.
type Accounts struct {
	State           ed25519.PublicKey
	User            ed25519.PublicKey
	UserStats       ed25519.PublicKey
	SpotMarket      ed25519.PublicKey
	SpotMarketVault ed25519.PublicKey
	Signer          ed25519.PublicKey
}

// AccountsFor derives the fixed accounts for an action by authority against a
// single spot market.
func AccountsFor(authority ed25519.PublicKey, marketIndex uint16) (*Accounts, error) {
	state, _, err := GetStateAddress()
	if err != nil {
		return nil, errors.Wrap(err, "error deriving state address")
	}

	user, _, err := GetUserAddress(authority, DefaultSubAccountId)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving user address")
	}

	userStats, _, err := GetUserStatsAddress(authority)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving user stats address")
	}

	spotMarket, _, err := GetSpotMarketAddress(marketIndex)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving spot market address")
	}

	spotMarketVault, _, err := GetSpotMarketVaultAddress(marketIndex)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving spot market vault address")
	}

	signer, _, err := GetSignerAddress()
	if err != nil {
		return nil, errors.Wrap(err, "error deriving signer address")
	}

	return &Accounts{
		State:           state,
		User:            user,
		UserStats:       userStats,
		SpotMarket:      spotMarket,
		SpotMarketVault: spotMarketVault,
		Signer:          signer,
	}, nil
}
