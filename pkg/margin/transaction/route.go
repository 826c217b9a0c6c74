package transaction

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/jupiter"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

// Router finds a swap route from the owner's associated token account for
// inMint into the one for outMint.
type Router interface {
	GetRoute(ctx context.Context, owner, inMint, outMint ed25519.PublicKey, amountIn uint64) (*SwapRoute, error)
}

type JupiterRouterConfig struct {
	SlippageBps      uint32
	MaxAccounts      uint8
	ForceDirectRoute bool
}

type jupiterRouter struct {
	client *jupiter.Client
	tables *LookupTableResolver
	config *JupiterRouterConfig
}

// NewJupiterRouter returns a Router backed by Jupiter's swap API. Routes come
// back as versioned transaction instructions along with their lookup tables.
func NewJupiterRouter(client *jupiter.Client, tables *LookupTableResolver, config *JupiterRouterConfig) Router {
	return &jupiterRouter{
		client: client,
		tables: tables,
		config: config,
	}
}

func (r *jupiterRouter) GetRoute(ctx context.Context, owner, inMint, outMint ed25519.PublicKey, amountIn uint64) (*SwapRoute, error) {
	destination, err := token.GetAssociatedAccount(owner, outMint)
	if err != nil {
		return nil, errors.Wrap(err, "error getting destination ata")
	}

	quote, err := r.client.GetQuote(ctx, &jupiter.QuoteRequest{
		InputMint:        inMint,
		OutputMint:       outMint,
		Amount:           amountIn,
		SlippageBps:      r.config.SlippageBps,
		OnlyDirectRoutes: r.config.ForceDirectRoute,
		MaxAccounts:      r.config.MaxAccounts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting quote")
	}

	// The input is already wrapped by begin_swap and the output is repaid as
	// wSOL, so Jupiter must not wrap or unwrap anything.
	ixns, err := r.client.GetSwapInstructions(ctx, &jupiter.SwapRequest{
		Quote:                   quote,
		Owner:                   owner,
		DestinationTokenAccount: destination,
		WrapAndUnwrapSol:        false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting swap instructions")
	}

	if ixns.TokenLedgerInstruction != nil {
		return nil, errors.New("token ledger routes are not supported")
	}

	tables, err := r.tables.Resolve(ixns.AddressLookupTableAddresses)
	if err != nil {
		return nil, err
	}

	route := &SwapRoute{
		SetupInstructions: ixns.SetupInstructions,
		SwapInstruction:   ixns.SwapInstruction,
		LookupTables:      tables,
		AmountIn:          amountIn,
		MinimumAmountOut:  quote.MinimumAmountOut,
	}

	if err := ValidateRoute(route); err != nil {
		return nil, err
	}
	return route, nil
}
