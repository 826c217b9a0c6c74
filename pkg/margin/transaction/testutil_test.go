package transaction

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/memory"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
	"github.com/code-payments/vault-server/pkg/testutil"
)

const (
	testLiquidity     = 1_000_000_000_000
	testOwnerLamports = 100_000_000_000
	testOwnerUsdc     = 1_000_000_000
	testStakeLamports = 1_000_000_000
)

type testEnv struct {
	t *testing.T

	ledger     *memory.Ledger
	deployment *memory.VaultDeployment

	owner        *common.Account
	stakeAccount *common.Account
	accounts     *common.VaultAccounts

	ownerUsdc ed25519.PublicKey
	ownerWsol ed25519.PublicKey
}

func setupTestEnv(t *testing.T) *testEnv {
	config := &common.VaultConfig{
		UsdcMint: common.UsdcMintDevnetAccount,
	}

	registry, err := drift.NewDefaultRegistry(vault.USDC_MINT_DEVNET)
	require.NoError(t, err)

	ledger := memory.NewLedger()
	deployment, err := memory.InstallVaultPrograms(ledger, registry, vault.USDC_MINT_DEVNET, testLiquidity)
	require.NoError(t, err)

	env := &testEnv{
		t:            t,
		ledger:       ledger,
		deployment:   deployment,
		owner:        testutil.NewRandomAccount(t),
		stakeAccount: testutil.NewRandomAccount(t),
	}

	env.accounts, err = env.owner.GetVaultAccounts(config)
	require.NoError(t, err)

	owner := env.owner.PublicKey().ToBytes()
	env.ownerUsdc, err = token.GetAssociatedAccount(owner, vault.USDC_MINT_DEVNET)
	require.NoError(t, err)
	env.ownerWsol, err = token.GetAssociatedAccount(owner, token.WrappedSolMint)
	require.NoError(t, err)

	ledger.Airdrop(owner, testOwnerLamports)
	ledger.CreateTokenAccount(env.ownerUsdc, vault.USDC_MINT_DEVNET, owner, testOwnerUsdc)
	ledger.CreateStakeAccount(env.stakeAccount.PublicKey().ToBytes(), owner, testStakeLamports)

	return env
}

func (e *testEnv) driftContext(t *testing.T) *DriftContext {
	user, err := e.ledger.DriftUser(e.accounts.Vault.PublicKey().ToBytes())
	if err != nil {
		user = nil
	}
	return NewDriftContext(e.deployment.Registry, user)
}

// plan unwraps a composer result, failing the test on error.
func (e *testEnv) plan(plan *Plan, err error) *Plan {
	require.NoError(e.t, err)
	return plan
}

func (e *testEnv) execute(t *testing.T, plan *Plan) error {
	recent, err := e.ledger.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)

	txn, err := plan.ToTransaction(e.owner.PublicKey().ToBytes(), recent.Blockhash)
	require.NoError(t, err)
	require.NoError(t, txn.Sign(ed25519.PrivateKey(e.owner.PrivateKey().ToBytes())))

	_, err = e.ledger.SubmitTransaction(txn, solana.CommitmentFinalized)
	return err
}

func (e *testEnv) open(t *testing.T) {
	require.NoError(t, e.execute(t, e.plan(MakeDelegateStakeInstructions(e.accounts, e.stakeAccount))))
	require.NoError(t, e.execute(t, e.plan(MakeOpenVaultInstructions(e.accounts, e.stakeAccount))))
}

func (e *testEnv) position(t *testing.T, index uint16) (drift.SpotBalanceType, uint64, bool) {
	user, err := e.ledger.DriftUser(e.accounts.Vault.PublicKey().ToBytes())
	require.NoError(t, err)

	position, ok := user.GetSpotPosition(index)
	if !ok {
		return 0, 0, false
	}
	return position.BalanceType, position.ScaledBalance, true
}

func (e *testEnv) assertPosition(t *testing.T, index uint16, balanceType drift.SpotBalanceType, amount uint64) {
	actualType, actualAmount, ok := e.position(t, index)
	require.True(t, ok, "no position in market %d", index)
	assert.Equal(t, balanceType, actualType)
	assert.EqualValues(t, amount, actualAmount)
}

func (e *testEnv) assertNoPosition(t *testing.T, index uint16) {
	_, _, ok := e.position(t, index)
	assert.False(t, ok, "unexpected position in market %d", index)
}
