package transaction

import (
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/action"
	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

var (
	ErrNotDepositAction  = errors.New("action doesn't deposit into the vault")
	ErrNotWithdrawAction = errors.New("action doesn't withdraw from the vault")
)

// MakeDepositInstructions moves funds from the owner's wallet into the vault's
// Drift account, for a Deposit or a Repay. SOL is wrapped into the owner's
// wSOL account first.
func MakeDepositInstructions(accounts *common.VaultAccounts, driftCtx *DriftContext, req *action.Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.Action.IsDeposit() {
		return nil, errors.Wrap(ErrNotDepositAction, req.Action.String())
	}

	market, mint, err := driftCtx.market(req.MarketIndex)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction

	if market.IsNative() {
		wrapIxns, err := makeWrapSolInstructions(accounts, req)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, wrapIxns...)
	}

	depositIxn, err := makeDepositInstruction(accounts, driftCtx, market, mint, req.InstructionAmount(), req.Action.IsReduceOnly(), nil)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, depositIxn)

	return newPlan(instructions...), nil
}

// MakeWithdrawInstructions moves funds from the vault's Drift account to the
// owner's wallet, for a Withdraw or a Borrow. Withdrawn SOL is unwrapped by
// closing the owner's wSOL account.
func MakeWithdrawInstructions(accounts *common.VaultAccounts, driftCtx *DriftContext, req *action.Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Action.IsDeposit() {
		return nil, errors.Wrap(ErrNotWithdrawAction, req.Action.String())
	}

	market, mint, err := driftCtx.market(req.MarketIndex)
	if err != nil {
		return nil, err
	}

	owner := accounts.Owner.PublicKey().ToBytes()

	createAtaIxn, ownerSpl, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, market.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "error making create ata instruction")
	}

	vaultSpl, err := accounts.ToVaultSpl(mint)
	if err != nil {
		return nil, err
	}

	driftAccounts, err := drift.AccountsFor(accounts.Vault.PublicKey().ToBytes(), market.Index)
	if err != nil {
		return nil, err
	}

	remainingAccounts, err := driftCtx.remainingAccounts(nil, []uint16{market.Index})
	if err != nil {
		return nil, err
	}

	withdrawIxn := vault.NewWithdrawInstruction(
		&vault.WithdrawInstructionAccounts{
			Vault:             accounts.Vault.PublicKey().ToBytes(),
			VaultSpl:          vaultSpl.PublicKey().ToBytes(),
			Owner:             owner,
			OwnerSpl:          ownerSpl,
			DriftState:        driftAccounts.State,
			DriftUser:         driftAccounts.User,
			DriftUserStats:    driftAccounts.UserStats,
			SpotMarketVault:   driftAccounts.SpotMarketVault,
			DriftSigner:       driftAccounts.Signer,
			SplMint:           market.Mint,
			RemainingAccounts: remainingAccounts,
		},
		&vault.WithdrawInstructionArgs{
			Amount:      req.InstructionAmount(),
			MarketIndex: market.Index,
			ReduceOnly:  req.Action.IsReduceOnly(),
		},
	)

	instructions := []solana.Instruction{
		createAtaIxn,
		withdrawIxn,
	}

	if market.IsNative() {
		instructions = append(instructions, token.CloseAccount(ownerSpl, owner, owner))
	}

	return newPlan(instructions...), nil
}

// makeWrapSolInstructions funds the owner's wSOL account with the request
// amount. Requests for the full balance rely on wSOL the owner already holds.
func makeWrapSolInstructions(accounts *common.VaultAccounts, req *action.Request) ([]solana.Instruction, error) {
	owner := accounts.Owner.PublicKey().ToBytes()

	createAtaIxn, wsolAta, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, token.WrappedSolMint)
	if err != nil {
		return nil, errors.Wrap(err, "error making create wsol ata instruction")
	}

	instructions := []solana.Instruction{createAtaIxn}
	if !req.All {
		instructions = append(instructions, system.Transfer(owner, wsolAta, req.Amount))
	}
	instructions = append(instructions, token.SyncNative(wsolAta))

	return instructions, nil
}

func makeDepositInstruction(
	accounts *common.VaultAccounts,
	driftCtx *DriftContext,
	market *drift.SpotMarket,
	mint *common.Account,
	amount uint64,
	reduceOnly bool,
	readableMarketIndexes []uint16,
) (solana.Instruction, error) {
	owner := accounts.Owner.PublicKey().ToBytes()

	ownerSpl, err := token.GetAssociatedAccount(owner, market.Mint)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error getting owner ata")
	}

	vaultSpl, err := accounts.ToVaultSpl(mint)
	if err != nil {
		return solana.Instruction{}, err
	}

	driftAccounts, err := drift.AccountsFor(accounts.Vault.PublicKey().ToBytes(), market.Index)
	if err != nil {
		return solana.Instruction{}, err
	}

	remainingAccounts, err := driftCtx.remainingAccounts(readableMarketIndexes, []uint16{market.Index})
	if err != nil {
		return solana.Instruction{}, err
	}

	return vault.NewDepositInstruction(
		&vault.DepositInstructionAccounts{
			Vault:             accounts.Vault.PublicKey().ToBytes(),
			VaultSpl:          vaultSpl.PublicKey().ToBytes(),
			Owner:             owner,
			OwnerSpl:          ownerSpl,
			DriftState:        driftAccounts.State,
			DriftUser:         driftAccounts.User,
			DriftUserStats:    driftAccounts.UserStats,
			SpotMarketVault:   driftAccounts.SpotMarketVault,
			SplMint:           market.Mint,
			RemainingAccounts: remainingAccounts,
		},
		&vault.DepositInstructionArgs{
			Amount:      amount,
			MarketIndex: market.Index,
			ReduceOnly:  reduceOnly,
		},
	), nil
}
