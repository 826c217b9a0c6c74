package transaction

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/margin/action"
	"github.com/code-payments/vault-server/pkg/solana"
	compute_budget "github.com/code-payments/vault-server/pkg/solana/computebudget"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/memory"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
	"github.com/code-payments/vault-server/pkg/testutil"
)

func TestOpenVault(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	info, ok := env.ledger.GetAccount(env.accounts.Vault.PublicKey().ToBytes())
	require.True(t, ok)

	var vaultAccount vault.VaultAccount
	require.NoError(t, vaultAccount.Unmarshal(info.Data))
	assert.EqualValues(t, env.owner.PublicKey().ToBytes(), vaultAccount.Owner)
	assert.EqualValues(t, env.stakeAccount.PublicKey().ToBytes(), vaultAccount.StakeAccount)
	assert.Equal(t, env.accounts.VaultBump, vaultAccount.Bump)

	_, ok = env.ledger.GetAccount(env.accounts.VaultUsdc.PublicKey().ToBytes())
	assert.True(t, ok)

	user, err := env.ledger.DriftUser(env.accounts.Vault.PublicKey().ToBytes())
	require.NoError(t, err)
	assert.False(t, user.HasOpenPositions())
}

func TestOpenVault_Split(t *testing.T) {
	env := setupTestEnv(t)
	vaultAddress := env.accounts.Vault.PublicKey().ToBytes()

	require.NoError(t, env.execute(t, env.plan(MakeDelegateStakeInstructions(env.accounts, env.stakeAccount))))
	require.NoError(t, env.execute(t, env.plan(MakeInitUserInstructions(env.accounts, env.stakeAccount))))

	_, ok := env.ledger.GetAccount(vaultAddress)
	assert.True(t, ok)
	_, err := env.ledger.DriftUser(vaultAddress)
	assert.Error(t, err)

	require.NoError(t, env.execute(t, env.plan(MakeRegisterInstructions(env.accounts))))

	_, err = env.ledger.DriftUser(vaultAddress)
	assert.NoError(t, err)
}

func TestOpenVault_RequiresDelegatedStake(t *testing.T) {
	env := setupTestEnv(t)

	err := env.execute(t, env.plan(MakeOpenVaultInstructions(env.accounts, env.stakeAccount)))
	testutil.AssertCustomError(t, err, int(vault.InvalidStakeAccountAuthority), 0)

	_, ok := env.ledger.GetAccount(env.accounts.Vault.PublicKey().ToBytes())
	assert.False(t, ok)
}

func TestOpenVault_Twice(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	err := env.execute(t, env.plan(MakeOpenVaultInstructions(env.accounts, env.stakeAccount)))
	assert.Error(t, err)
}

func TestDelegateStake(t *testing.T) {
	env := setupTestEnv(t)

	plan, err := MakeDelegateStakeInstructions(env.accounts, env.stakeAccount)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 2)
	for _, ixn := range plan.Instructions {
		assert.False(t, IsVaultInstruction(ixn))
	}

	require.NoError(t, env.execute(t, plan))

	// Delegating again fails, since the owner is no longer an authority
	assert.Error(t, env.execute(t, env.plan(MakeDelegateStakeInstructions(env.accounts, env.stakeAccount))))
}

func TestDepositAndWithdrawSol(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	owner := env.owner.PublicKey().ToBytes()
	sol, err := env.deployment.Registry.Get(drift.MarketIndexSol)
	require.NoError(t, err)

	depositPlan, err := MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		Amount:      2_000_000_000,
	})
	require.NoError(t, err)

	require.Len(t, depositPlan.Instructions, 4)
	assert.EqualValues(t, token.AssociatedTokenAccountProgramKey, depositPlan.Instructions[0].Program)
	assert.EqualValues(t, system.ProgramKey[:], depositPlan.Instructions[1].Program)
	assert.EqualValues(t, token.ProgramKey, depositPlan.Instructions[2].Program)
	assert.True(t, IsVaultInstruction(depositPlan.Instructions[3]))

	lamportsBefore, err := env.ledger.GetBalance(owner)
	require.NoError(t, err)

	require.NoError(t, env.execute(t, depositPlan))

	env.assertPosition(t, drift.MarketIndexSol, drift.SpotBalanceTypeDeposit, 2_000_000_000)
	assert.EqualValues(t, 0, env.ledger.TokenBalance(env.ownerWsol))
	assert.EqualValues(t, testLiquidity+2_000_000_000, env.ledger.TokenBalance(sol.Vault))

	lamportsAfter, err := env.ledger.GetBalance(owner)
	require.NoError(t, err)
	assert.True(t, lamportsBefore-lamportsAfter > 2_000_000_000)

	withdrawPlan, err := MakeWithdrawInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Withdraw,
		MarketIndex: drift.MarketIndexSol,
		All:         true,
	})
	require.NoError(t, err)

	require.Len(t, withdrawPlan.Instructions, 3)
	assert.True(t, IsVaultInstruction(withdrawPlan.Instructions[1]))
	assert.EqualValues(t, token.ProgramKey, withdrawPlan.Instructions[2].Program)

	require.NoError(t, env.execute(t, withdrawPlan))

	env.assertNoPosition(t, drift.MarketIndexSol)
	assert.EqualValues(t, testLiquidity, env.ledger.TokenBalance(sol.Vault))

	// Unwrapping closes the wSOL account back into the owner's wallet
	_, ok := env.ledger.GetAccount(env.ownerWsol)
	assert.False(t, ok)
}

func TestDeposit_AllNotSupported(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	_, err := MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		All:         true,
	})
	assert.ErrorIs(t, err, action.ErrAllNotSupported)
}

func TestBorrowAndRepay(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	require.NoError(t, env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		Amount:      10_000_000_000,
	}))))

	require.NoError(t, env.execute(t, env.plan(MakeWithdrawInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Borrow,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	}))))

	env.assertPosition(t, drift.MarketIndexUsdc, drift.SpotBalanceTypeBorrow, 100_000_000)
	assert.EqualValues(t, testOwnerUsdc+100_000_000, env.ledger.TokenBalance(env.ownerUsdc))

	require.NoError(t, env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Repay,
		MarketIndex: drift.MarketIndexUsdc,
		All:         true,
	}))))

	env.assertNoPosition(t, drift.MarketIndexUsdc)
	env.assertPosition(t, drift.MarketIndexSol, drift.SpotBalanceTypeDeposit, 10_000_000_000)
	assert.EqualValues(t, testOwnerUsdc, env.ledger.TokenBalance(env.ownerUsdc))
}

func TestBorrow_WithoutCollateral(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	err := env.execute(t, env.plan(MakeWithdrawInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Borrow,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	})))
	testutil.AssertCustomError(t, err, int(drift.InsufficientCollateral), 1)

	assert.EqualValues(t, testOwnerUsdc, env.ledger.TokenBalance(env.ownerUsdc))
}

func TestDeposit_FailureIsAtomic(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	owner := env.owner.PublicKey().ToBytes()
	lamportsBefore, err := env.ledger.GetBalance(owner)
	require.NoError(t, err)

	env.deployment.Drift.PauseMarket(drift.MarketIndexSol, true)

	err = env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		Amount:      2_000_000_000,
	})))
	testutil.AssertCustomError(t, err, int(drift.MarketDepositPaused), 3)

	// Neither the wSOL account nor the wrap landed
	_, ok := env.ledger.GetAccount(env.ownerWsol)
	assert.False(t, ok)
	env.assertNoPosition(t, drift.MarketIndexSol)

	lamportsAfter, err := env.ledger.GetBalance(owner)
	require.NoError(t, err)
	assert.Equal(t, lamportsBefore, lamportsAfter)
}

func TestDeposit_InjectedFailureIsAtomic(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	env.ledger.SetInstructionHook(func(_ int, ixn solana.Instruction) error {
		if IsVaultInstruction(ixn) {
			return solana.CustomError(vault.VaultDisabled)
		}
		return nil
	})

	err := env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	})))
	testutil.AssertCustomError(t, err, int(vault.VaultDisabled), 0)

	assert.EqualValues(t, testOwnerUsdc, env.ledger.TokenBalance(env.ownerUsdc))
	env.assertNoPosition(t, drift.MarketIndexUsdc)
}

func TestRequestValidation(t *testing.T) {
	env := setupTestEnv(t)
	driftCtx := NewDriftContext(env.deployment.Registry, nil)

	_, err := MakeDepositInstructions(env.accounts, driftCtx, &action.Request{
		Action:      action.Borrow,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      1,
	})
	assert.ErrorIs(t, err, ErrNotDepositAction)

	_, err = MakeWithdrawInstructions(env.accounts, driftCtx, &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      1,
	})
	assert.ErrorIs(t, err, ErrNotWithdrawAction)

	_, err = MakeWithdrawInstructions(env.accounts, driftCtx, &action.Request{
		Action:      action.Borrow,
		MarketIndex: drift.MarketIndexUsdc,
		All:         true,
	})
	assert.ErrorIs(t, err, action.ErrAllNotSupported)

	_, err = MakeDepositInstructions(env.accounts, driftCtx, &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexUsdc,
	})
	assert.ErrorIs(t, err, action.ErrZeroAmount)

	_, err = MakeDepositInstructions(env.accounts, driftCtx, &action.Request{
		Action:      action.Deposit,
		MarketIndex: 42,
		Amount:      1,
	})
	assert.ErrorIs(t, err, drift.ErrUnknownSpotMarket)
}

func TestDeposit_RemainingAccounts(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	require.NoError(t, env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		Amount:      10_000_000_000,
	}))))

	usdc, err := env.deployment.Registry.Get(drift.MarketIndexUsdc)
	require.NoError(t, err)
	sol, err := env.deployment.Registry.Get(drift.MarketIndexSol)
	require.NoError(t, err)

	plan, err := MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	})
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)

	remaining := plan.Instructions[0].Accounts[12:]
	require.Len(t, remaining, 4)

	expected := []solana.AccountMeta{
		{PublicKey: sol.Oracle},
		{PublicKey: usdc.Oracle},
		{PublicKey: sol.Address},
		{PublicKey: usdc.Address, IsWritable: true},
	}
	for i, meta := range expected {
		assert.EqualValues(t, meta.PublicKey, remaining[i].PublicKey, "remaining account %d", i)
		assert.Equal(t, meta.IsWritable, remaining[i].IsWritable, "remaining account %d", i)
		assert.False(t, remaining[i].IsSigner)
	}

	require.NoError(t, env.execute(t, plan))

	// Without the user, the SOL position is missing from the remaining accounts
	plan, err = MakeWithdrawInstructions(env.accounts, NewDriftContext(env.deployment.Registry, nil), &action.Request{
		Action:      action.Withdraw,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	})
	require.NoError(t, err)
	err = env.execute(t, plan)
	testutil.AssertCustomError(t, err, int(drift.OracleNotFound), 1)
}

func TestSwapAndRepay(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	owner := env.owner.PublicKey().ToBytes()

	require.NoError(t, env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexSol,
		Amount:      2_000_000_000,
	}))))
	require.NoError(t, env.execute(t, env.plan(MakeWithdrawInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Borrow,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	}))))

	swapIxn, err := memory.NewSwapInstruction(owner, env.ownerWsol, env.ownerUsdc, token.WrappedSolMint, vault.USDC_MINT_DEVNET, 1_000_000_000, 150_000_000)
	require.NoError(t, err)

	// Route the pool accounts through a lookup table, the way aggregator
	// routes are delivered
	table := testutil.GenerateSolanaKeypair(t).Public().(ed25519.PublicKey)
	env.ledger.CreateAddressLookupTable(table, []ed25519.PublicKey{
		swapIxn.Accounts[3].PublicKey,
		swapIxn.Accounts[4].PublicKey,
		swapIxn.Accounts[5].PublicKey,
	})

	tables, err := NewLookupTableResolver(env.ledger, solana.CommitmentFinalized, 100).Resolve([]ed25519.PublicKey{table})
	require.NoError(t, err)

	plan, err := MakeSwapAndRepayInstructions(env.accounts, env.driftContext(t), &SwapAndRepayArgs{
		InMarketIndex:  drift.MarketIndexSol,
		OutMarketIndex: drift.MarketIndexUsdc,
		Route: &SwapRoute{
			SwapInstruction:  swapIxn,
			LookupTables:     tables,
			AmountIn:         1_000_000_000,
			MinimumAmountOut: 150_000_000,
		},
	})
	require.NoError(t, err)

	var types []vault.InstructionType
	for _, ixn := range plan.Instructions {
		if !IsVaultInstruction(ixn) {
			continue
		}
		instructionType, _, err := vault.GetInstructionType(ixn.Data)
		require.NoError(t, err)
		types = append(types, instructionType)
	}
	assert.Equal(t, []vault.InstructionType{
		vault.InstructionTypeBeginSwap,
		vault.InstructionTypeEndSwap,
		vault.InstructionTypeDeposit,
	}, types)

	recent, err := env.ledger.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)
	txn, err := plan.ToTransaction(owner, recent.Blockhash)
	require.NoError(t, err)
	assert.Equal(t, solana.MessageVersion0, txn.Message.Version())

	require.NoError(t, env.execute(t, plan))

	env.assertNoPosition(t, drift.MarketIndexUsdc)
	env.assertPosition(t, drift.MarketIndexSol, drift.SpotBalanceTypeDeposit, 1_000_000_000)

	// The swap proceeds above the borrow stay with the owner
	assert.EqualValues(t, testOwnerUsdc+150_000_000, env.ledger.TokenBalance(env.ownerUsdc))
	assert.EqualValues(t, 0, env.ledger.TokenBalance(env.ownerWsol))
}

func TestSwapAndRepay_InvalidArgs(t *testing.T) {
	env := setupTestEnv(t)
	driftCtx := NewDriftContext(env.deployment.Registry, nil)

	swapIxn, err := memory.NewSwapInstruction(
		env.owner.PublicKey().ToBytes(),
		env.ownerWsol,
		env.ownerUsdc,
		token.WrappedSolMint,
		vault.USDC_MINT_DEVNET,
		1,
		1,
	)
	require.NoError(t, err)

	_, err = MakeSwapAndRepayInstructions(env.accounts, driftCtx, &SwapAndRepayArgs{
		InMarketIndex:  drift.MarketIndexSol,
		OutMarketIndex: drift.MarketIndexSol,
		Route:          &SwapRoute{SwapInstruction: swapIxn, AmountIn: 1, MinimumAmountOut: 1},
	})
	assert.Equal(t, ErrSameMarket, err)

	_, err = MakeSwapAndRepayInstructions(env.accounts, driftCtx, &SwapAndRepayArgs{
		InMarketIndex:  drift.MarketIndexSol,
		OutMarketIndex: drift.MarketIndexUsdc,
	})
	assert.Error(t, err)

	_, err = MakeSwapAndRepayInstructions(env.accounts, driftCtx, &SwapAndRepayArgs{
		InMarketIndex:  drift.MarketIndexSol,
		OutMarketIndex: drift.MarketIndexUsdc,
		Route:          &SwapRoute{SwapInstruction: swapIxn, AmountIn: 1},
	})
	assert.Error(t, err)
}

func TestValidateRoute(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.owner.PublicKey().ToBytes()

	swapIxn, err := memory.NewSwapInstruction(owner, env.ownerWsol, env.ownerUsdc, token.WrappedSolMint, vault.USDC_MINT_DEVNET, 1, 1)
	require.NoError(t, err)

	setupIxn, _, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, vault.USDC_MINT_DEVNET)
	require.NoError(t, err)

	assert.NoError(t, ValidateRoute(&SwapRoute{
		SetupInstructions: []solana.Instruction{setupIxn},
		SwapInstruction:   swapIxn,
	}))

	vaultIxn := env.plan(MakeRegisterInstructions(env.accounts)).Instructions[0]
	driftIxn := solana.NewInstruction(drift.PROGRAM_ID, []byte{1, 2, 3})
	transferIxn := system.Transfer(owner, env.ownerWsol, 1)

	for _, ixn := range []solana.Instruction{vaultIxn, driftIxn, transferIxn} {
		assert.Error(t, ValidateRoute(&SwapRoute{
			SetupInstructions: []solana.Instruction{setupIxn, ixn},
			SwapInstruction:   swapIxn,
		}))
		assert.Error(t, ValidateRoute(&SwapRoute{
			SwapInstruction: ixn,
		}))
	}
}

func TestCloseVault(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	vaultAddress := env.accounts.Vault.PublicKey().ToBytes()

	plan, err := MakeCloseVaultInstructions(env.accounts, true)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 2)

	for i, expected := range []vault.InstructionType{
		vault.InstructionTypeCloseDriftAccount,
		vault.InstructionTypeCloseUser,
	} {
		actual, _, err := vault.GetInstructionType(plan.Instructions[i].Data)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	require.NoError(t, env.execute(t, plan))

	_, ok := env.ledger.GetAccount(vaultAddress)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(env.accounts.VaultUsdc.PublicKey().ToBytes())
	assert.False(t, ok)
	_, err = env.ledger.DriftUser(vaultAddress)
	assert.Error(t, err)

	// A closed vault can be opened again
	require.NoError(t, env.execute(t, env.plan(MakeOpenVaultInstructions(env.accounts, env.stakeAccount))))
}

func TestCloseVault_Unregistered(t *testing.T) {
	env := setupTestEnv(t)

	require.NoError(t, env.execute(t, env.plan(MakeDelegateStakeInstructions(env.accounts, env.stakeAccount))))
	require.NoError(t, env.execute(t, env.plan(MakeInitUserInstructions(env.accounts, env.stakeAccount))))

	plan, err := MakeCloseVaultInstructions(env.accounts, false)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)

	require.NoError(t, env.execute(t, plan))

	_, ok := env.ledger.GetAccount(env.accounts.Vault.PublicKey().ToBytes())
	assert.False(t, ok)
}

func TestCloseVault_DriftAccountOpen(t *testing.T) {
	env := setupTestEnv(t)
	env.open(t)

	err := env.execute(t, env.plan(MakeCloseVaultInstructions(env.accounts, false)))
	testutil.AssertCustomError(t, err, int(vault.DriftAccountOpen), 0)

	require.NoError(t, env.execute(t, env.plan(MakeDepositInstructions(env.accounts, env.driftContext(t), &action.Request{
		Action:      action.Deposit,
		MarketIndex: drift.MarketIndexUsdc,
		Amount:      100_000_000,
	}))))

	err = env.execute(t, env.plan(MakeCloseVaultInstructions(env.accounts, true)))
	testutil.AssertCustomError(t, err, int(drift.UserCantBeDeleted), 0)

	_, ok := env.ledger.GetAccount(env.accounts.Vault.PublicKey().ToBytes())
	assert.True(t, ok)
}

func TestPlan_WithComputeBudget(t *testing.T) {
	env := setupTestEnv(t)

	plan := env.plan(MakeRegisterInstructions(env.accounts))

	withBudget := plan.WithComputeBudget(200_000, 1_000)
	require.Len(t, withBudget.Instructions, 3)
	assert.True(t, compute_budget.IsComputeBudgetInstruction(withBudget.Instructions[0]))
	assert.True(t, compute_budget.IsComputeBudgetInstruction(withBudget.Instructions[1]))
	assert.True(t, IsVaultInstruction(withBudget.Instructions[2]))

	assert.Len(t, plan.Instructions, 1)
	assert.True(t, withBudget.WithComputeBudget(400_000, 2_000) == withBudget)

	priceOnly := plan.WithComputeBudget(0, 1_000)
	assert.Len(t, priceOnly.Instructions, 2)

	assert.True(t, plan.WithComputeBudget(0, 0) == plan)
}

func TestPlan_ToTransaction(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.owner.PublicKey().ToBytes()

	recent, err := env.ledger.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)

	_, err = (&Plan{}).ToTransaction(owner, recent.Blockhash)
	assert.Equal(t, ErrEmptyPlan, err)

	txn, err := env.plan(MakeOpenVaultInstructions(env.accounts, env.stakeAccount)).ToTransaction(owner, recent.Blockhash)
	require.NoError(t, err)
	assert.Equal(t, solana.MessageVersionLegacy, txn.Message.Version())
	assert.Equal(t, recent.Blockhash, txn.Message.RecentBlockhash)
	assert.True(t, bytes.Equal(owner, txn.Message.Accounts[0]))
	assert.Len(t, txn.MissingSigners(), 1)
}
