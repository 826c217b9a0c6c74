package transaction

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

var ErrSameMarket = errors.New("swap markets must differ")

// SwapRoute is an aggregator route that swaps tokens held by the owner's
// associated token account for the in mint into the owner's associated token
// account for the out mint.
type SwapRoute struct {
	SetupInstructions []solana.Instruction
	SwapInstruction   solana.Instruction
	LookupTables      []solana.AddressLookupTable

	AmountIn uint64

	// MinimumAmountOut is the least the route delivers within its slippage
	// tolerance. It's the amount repaid, so the repay never exceeds what
	// the swap produced.
	MinimumAmountOut uint64
}

type SwapAndRepayArgs struct {
	InMarketIndex  uint16
	OutMarketIndex uint16
	Route          *SwapRoute
}

// MakeSwapAndRepayInstructions sells collateral in one market to repay a
// borrow in another. Drift lends the in tokens to the owner between
// begin_swap and end_swap, the route swaps them in the owner's wallet, and
// the proceeds are deposited as a reduce only repay. All of it lands in one
// transaction.
func MakeSwapAndRepayInstructions(accounts *common.VaultAccounts, driftCtx *DriftContext, args *SwapAndRepayArgs) (*Plan, error) {
	if args.InMarketIndex == args.OutMarketIndex {
		return nil, ErrSameMarket
	}
	if args.Route == nil {
		return nil, errors.New("swap route is required")
	}
	if args.Route.AmountIn == 0 || args.Route.MinimumAmountOut == 0 {
		return nil, errors.New("swap route amounts must be positive")
	}
	if err := ValidateRoute(args.Route); err != nil {
		return nil, err
	}

	inMarket, inMint, err := driftCtx.market(args.InMarketIndex)
	if err != nil {
		return nil, err
	}
	outMarket, outMint, err := driftCtx.market(args.OutMarketIndex)
	if err != nil {
		return nil, err
	}

	owner := accounts.Owner.PublicKey().ToBytes()

	createInAtaIxn, ownerSplIn, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, inMarket.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "error making create in ata instruction")
	}

	createOutAtaIxn, ownerSplOut, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, outMarket.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "error making create out ata instruction")
	}

	vaultSplIn, err := accounts.ToVaultSpl(inMint)
	if err != nil {
		return nil, err
	}
	vaultSplOut, err := accounts.ToVaultSpl(outMint)
	if err != nil {
		return nil, err
	}

	driftAccounts, err := drift.AccountsFor(accounts.Vault.PublicKey().ToBytes(), inMarket.Index)
	if err != nil {
		return nil, err
	}

	markets := []uint16{inMarket.Index, outMarket.Index}
	remainingAccounts, err := driftCtx.remainingAccounts(nil, markets)
	if err != nil {
		return nil, err
	}

	beginSwapIxn := vault.NewBeginSwapInstruction(
		&vault.BeginSwapInstructionAccounts{
			Vault:              accounts.Vault.PublicKey().ToBytes(),
			Owner:              owner,
			OwnerSplIn:         ownerSplIn,
			VaultSplIn:         vaultSplIn.PublicKey().ToBytes(),
			VaultSplOut:        vaultSplOut.PublicKey().ToBytes(),
			DriftState:         driftAccounts.State,
			DriftUser:          driftAccounts.User,
			DriftUserStats:     driftAccounts.UserStats,
			InSpotMarketVault:  inMarket.Vault,
			OutSpotMarketVault: outMarket.Vault,
			DriftSigner:        driftAccounts.Signer,
			MintIn:             inMarket.Mint,
			MintOut:            outMarket.Mint,
			RemainingAccounts:  remainingAccounts,
		},
		&vault.BeginSwapInstructionArgs{
			AmountIn:       args.Route.AmountIn,
			InMarketIndex:  inMarket.Index,
			OutMarketIndex: outMarket.Index,
		},
	)

	endSwapIxn := vault.NewEndSwapInstruction(
		&vault.EndSwapInstructionAccounts{
			Vault:              accounts.Vault.PublicKey().ToBytes(),
			Owner:              owner,
			OwnerSplOut:        ownerSplOut,
			VaultSplIn:         vaultSplIn.PublicKey().ToBytes(),
			VaultSplOut:        vaultSplOut.PublicKey().ToBytes(),
			DriftState:         driftAccounts.State,
			DriftUser:          driftAccounts.User,
			DriftUserStats:     driftAccounts.UserStats,
			InSpotMarketVault:  inMarket.Vault,
			OutSpotMarketVault: outMarket.Vault,
			DriftSigner:        driftAccounts.Signer,
			MintIn:             inMarket.Mint,
			MintOut:            outMarket.Mint,
			RemainingAccounts:  remainingAccounts,
		},
		&vault.EndSwapInstructionArgs{
			InMarketIndex:  inMarket.Index,
			OutMarketIndex: outMarket.Index,
		},
	)

	repayIxn, err := makeDepositInstruction(accounts, driftCtx, outMarket, outMint, args.Route.MinimumAmountOut, true, []uint16{inMarket.Index})
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{
		createInAtaIxn,
		createOutAtaIxn,
		beginSwapIxn,
	}
	instructions = append(instructions, args.Route.SetupInstructions...)
	instructions = append(instructions, args.Route.SwapInstruction, endSwapIxn, repayIxn)

	return &Plan{
		Instructions: instructions,
		LookupTables: args.Route.LookupTables,
	}, nil
}

// IsVaultInstruction reports whether the instruction targets the vault
// program. Aggregator routes must never contain one, since a stray
// begin_swap or end_swap would break the pairing Drift checks.
func IsVaultInstruction(ixn solana.Instruction) bool {
	return bytes.Equal(ixn.Program, vault.PROGRAM_ID)
}

// ValidateRoute rejects routes that could interfere with the swap bracket.
func ValidateRoute(route *SwapRoute) error {
	routeIxns := make([]solana.Instruction, 0, len(route.SetupInstructions)+1)
	routeIxns = append(routeIxns, route.SetupInstructions...)
	routeIxns = append(routeIxns, route.SwapInstruction)

	for _, ixn := range routeIxns {
		switch {
		case IsVaultInstruction(ixn):
			return errors.New("route contains a vault instruction")
		case bytes.Equal(ixn.Program, drift.PROGRAM_ID):
			return errors.New("route contains a drift instruction")
		case bytes.Equal(ixn.Program, system.ProgramKey[:]) && isSystemTransfer(ixn):
			return errors.New("route moves lamports")
		}
	}
	return nil
}

func isSystemTransfer(ixn solana.Instruction) bool {
	_, err := system.DecodeTransfer(ixn.Data)
	return err == nil
}
