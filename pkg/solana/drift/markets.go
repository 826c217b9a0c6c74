package drift

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana/token"
)

const (
	MarketIndexUsdc uint16 = 0
	MarketIndexSol  uint16 = 1
)

var (
	DefaultUsdcOracle = ed25519.PublicKey(mustBase58Decode("En8hkHLkRe9d9DraYmBTrus518BvmVH448YcvmrFM6Ce"))
	DefaultSolOracle  = ed25519.PublicKey(mustBase58Decode("BAtFj4kQttZRVep3UZS2aZRDixkGYgWsbqTBVDbnSsPF"))
)

// SpotMarket is the static configuration of a Drift spot market along with
// its derived program accounts.
type SpotMarket struct {
	Index    uint16
	Name     string
	Mint     ed25519.PublicKey
	Oracle   ed25519.PublicKey
	Decimals uint8

	Address ed25519.PublicKey
	Vault   ed25519.PublicKey
}

func NewSpotMarket(index uint16, name string, mint, oracle ed25519.PublicKey, decimals uint8) (*SpotMarket, error) {
	address, _, err := GetSpotMarketAddress(index)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving spot market address")
	}

	vault, _, err := GetSpotMarketVaultAddress(index)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving spot market vault address")
	}

	return &SpotMarket{
		Index:    index,
		Name:     name,
		Mint:     mint,
		Oracle:   oracle,
		Decimals: decimals,
		Address:  address,
		Vault:    vault,
	}, nil
}

// IsNative reports whether the market's token is wrapped SOL.
func (m *SpotMarket) IsNative() bool {
	return bytes.Equal(m.Mint, token.WrappedSolMint)
}

func (m *SpotMarket) String() string {
	return fmt.Sprintf(
		"SpotMarket{index=%d,name=%s,mint=%s,oracle=%s,address=%s,vault=%s}",
		m.Index,
		m.Name,
		base58.Encode(m.Mint),
		base58.Encode(m.Oracle),
		base58.Encode(m.Address),
		base58.Encode(m.Vault),
	)
}

// Registry holds the spot markets a deployment supports, keyed by index.
type Registry struct {
	markets map[uint16]*SpotMarket
}

func NewRegistry(markets ...*SpotMarket) *Registry {
	r := &Registry{
		markets: make(map[uint16]*SpotMarket),
	}
	for _, market := range markets {
		r.markets[market.Index] = market
	}
	return r
}

// NewDefaultRegistry returns the USDC and SOL markets for the given USDC mint,
// which differs between clusters.
func NewDefaultRegistry(usdcMint ed25519.PublicKey) (*Registry, error) {
	usdc, err := NewSpotMarket(MarketIndexUsdc, "USDC", usdcMint, DefaultUsdcOracle, 6)
	if err != nil {
		return nil, err
	}

	sol, err := NewSpotMarket(MarketIndexSol, "SOL", token.WrappedSolMint, DefaultSolOracle, 9)
	if err != nil {
		return nil, err
	}

	return NewRegistry(usdc, sol), nil
}

func (r *Registry) Get(index uint16) (*SpotMarket, error) {
	market, ok := r.markets[index]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSpotMarket, "market index %d", index)
	}
	return market, nil
}

func (r *Registry) GetByMint(mint ed25519.PublicKey) (*SpotMarket, error) {
	for _, market := range r.markets {
		if bytes.Equal(market.Mint, mint) {
			return market, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownSpotMarket, "mint %s", base58.Encode(mint))
}

// Indexes returns every registered market index in ascending order.
func (r *Registry) Indexes() []uint16 {
	indexes := make([]uint16, 0, len(r.markets))
	for index := range r.markets {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes
}
