package drift

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana"
)

type Role uint8

const (
	RoleOracle Role = iota
	RoleSpotMarket
)

func (r Role) String() string {
	switch r {
	case RoleOracle:
		return "oracle"
	case RoleSpotMarket:
		return "spot_market"
	}
	return "unknown"
}

// RemainingAccount is an account Drift loads from the tail of an instruction's
// account list to value a user's positions.
type RemainingAccount struct {
	Role        Role
	MarketIndex uint16
	Address     ed25519.PublicKey
	IsWritable  bool
}

func (a RemainingAccount) String() string {
	return fmt.Sprintf("%s[%d]=%s(writable=%v)", a.Role, a.MarketIndex, base58.Encode(a.Address), a.IsWritable)
}

type RemainingAccounts []RemainingAccount

func (r RemainingAccounts) ToAccountMetas() []solana.AccountMeta {
	metas := make([]solana.AccountMeta, len(r))
	for i, account := range r {
		metas[i] = solana.AccountMeta{
			PublicKey:  account.Address,
			IsWritable: account.IsWritable,
			IsSigner:   false,
		}
	}
	return metas
}

type ResolveArgs struct {
	// User is optional. When set, every market the user has a position in is
	// included so Drift can value the full portfolio.
	User *UserAccount

	ReadableMarketIndexes []uint16
	WritableMarketIndexes []uint16
}

type RemainingAccountsResolver struct {
	registry *Registry
}

func NewRemainingAccountsResolver(registry *Registry) *RemainingAccountsResolver {
	return &RemainingAccountsResolver{
		registry: registry,
	}
}

// Resolve orders the remaining accounts the way Drift consumes them: every
// oracle, then every spot market, each section by descending market index.
// An address appears at most once and is writable if any use requires it.
// Oracles are never writable.
func (r *RemainingAccountsResolver) Resolve(args *ResolveArgs) (RemainingAccounts, error) {
	writableByIndex := make(map[uint16]bool)

	readable := args.ReadableMarketIndexes
	if args.User != nil {
		readable = append(args.User.OpenSpotMarketIndexes(), readable...)
	}
	for _, index := range readable {
		if _, ok := writableByIndex[index]; !ok {
			writableByIndex[index] = false
		}
	}
	for _, index := range args.WritableMarketIndexes {
		writableByIndex[index] = true
	}

	indexes := make([]uint16, 0, len(writableByIndex))
	for index := range writableByIndex {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] > indexes[j] })

	markets := make([]*SpotMarket, len(indexes))
	for i, index := range indexes {
		market, err := r.registry.Get(index)
		if err != nil {
			return nil, err
		}
		markets[i] = market
	}

	var resolved RemainingAccounts
	add := func(account RemainingAccount) {
		for i := range resolved {
			if bytes.Equal(resolved[i].Address, account.Address) {
				resolved[i].IsWritable = resolved[i].IsWritable || account.IsWritable
				return
			}
		}
		resolved = append(resolved, account)
	}

	for _, market := range markets {
		add(RemainingAccount{
			Role:        RoleOracle,
			MarketIndex: market.Index,
			Address:     market.Oracle,
		})
	}
	for _, market := range markets {
		add(RemainingAccount{
			Role:        RoleSpotMarket,
			MarketIndex: market.Index,
			Address:     market.Address,
			IsWritable:  writableByIndex[market.Index],
		})
	}

	return resolved, nil
}
