package vault

import (
	"crypto/ed25519"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
)

func TestInitUserInstruction(t *testing.T) {
	keys := generateKeys(t, 4)

	ixn := NewInitUserInstruction(&InitUserInstructionAccounts{
		Vault:        keys[0],
		VaultUsdc:    keys[1],
		StakeAccount: keys[2],
		Owner:        keys[3],
		UsdcMint:     USDC_MINT_DEVNET,
	}, &InitUserInstructionArgs{})

	assert.EqualValues(t, PROGRAM_ID, ixn.Program)
	assert.Equal(t, initUserInstructionDiscriminator, ixn.Data)
	require.Len(t, ixn.Accounts, 9)

	assert.EqualValues(t, keys[3], ixn.Accounts[3].PublicKey)
	assert.True(t, ixn.Accounts[3].IsSigner)
	assert.True(t, ixn.Accounts[3].IsWritable)
	assert.EqualValues(t, STAKE_PROGRAM_ID, ixn.Accounts[7].PublicKey)
	assert.EqualValues(t, SYSVAR_RENT_PUBKEY, ixn.Accounts[8].PublicKey)

	assert.Equal(t, []ed25519.PublicKey{keys[3]}, ixn.RequiredSigners())
}

func TestDepositInstruction(t *testing.T) {
	keys := generateKeys(t, 10)

	remaining := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(keys[8], false),
		solana.NewAccountMeta(keys[9], false),
	}

	ixn := NewDepositInstruction(&DepositInstructionAccounts{
		Vault:             keys[0],
		VaultSpl:          keys[1],
		Owner:             keys[2],
		OwnerSpl:          keys[3],
		DriftState:        keys[4],
		DriftUser:         keys[5],
		DriftUserStats:    keys[6],
		SpotMarketVault:   keys[7],
		SplMint:           USDC_MINT_DEVNET,
		RemainingAccounts: remaining,
	}, &DepositInstructionArgs{
		Amount:      math.MaxUint64,
		MarketIndex: 1,
		ReduceOnly:  true,
	})

	require.Len(t, ixn.Data, 8+DepositInstructionArgsSize)
	instructionType, rawArgs, err := GetInstructionType(ixn.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeDeposit, instructionType)

	var args DepositInstructionArgs
	require.NoError(t, args.Unmarshal(rawArgs))
	assert.EqualValues(t, uint64(math.MaxUint64), args.Amount)
	assert.EqualValues(t, 1, args.MarketIndex)
	assert.True(t, args.ReduceOnly)

	require.Len(t, ixn.Accounts, 12+len(remaining))
	assert.Equal(t, remaining, ixn.Accounts[12:])
	assert.False(t, ixn.Accounts[4].IsWritable)
	assert.EqualValues(t, DRIFT_PROGRAM_ID, ixn.Accounts[10].PublicKey)
}

func TestWithdrawInstruction(t *testing.T) {
	keys := generateKeys(t, 9)

	ixn := NewWithdrawInstruction(&WithdrawInstructionAccounts{
		Vault:           keys[0],
		VaultSpl:        keys[1],
		Owner:           keys[2],
		OwnerSpl:        keys[3],
		DriftState:      keys[4],
		DriftUser:       keys[5],
		DriftUserStats:  keys[6],
		SpotMarketVault: keys[7],
		DriftSigner:     keys[8],
		SplMint:         USDC_MINT_DEVNET,
	}, &WithdrawInstructionArgs{
		Amount:      42,
		MarketIndex: 0,
		ReduceOnly:  false,
	})

	instructionType, rawArgs, err := GetInstructionType(ixn.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeWithdraw, instructionType)

	var args WithdrawInstructionArgs
	require.NoError(t, args.Unmarshal(rawArgs))
	assert.EqualValues(t, 42, args.Amount)
	assert.False(t, args.ReduceOnly)

	require.Len(t, ixn.Accounts, 13)
	assert.EqualValues(t, keys[8], ixn.Accounts[8].PublicKey)
	assert.False(t, ixn.Accounts[8].IsWritable)
}

func TestSwapInstructions(t *testing.T) {
	keys := generateKeys(t, 11)

	begin := NewBeginSwapInstruction(&BeginSwapInstructionAccounts{
		Vault:              keys[0],
		Owner:              keys[1],
		OwnerSplIn:         keys[2],
		VaultSplIn:         keys[3],
		VaultSplOut:        keys[4],
		DriftState:         keys[5],
		DriftUser:          keys[6],
		DriftUserStats:     keys[7],
		InSpotMarketVault:  keys[8],
		OutSpotMarketVault: keys[9],
		DriftSigner:        keys[10],
		MintIn:             keys[10],
		MintOut:            USDC_MINT_DEVNET,
	}, &BeginSwapInstructionArgs{
		AmountIn:       1_000,
		InMarketIndex:  1,
		OutMarketIndex: 0,
	})

	instructionType, rawArgs, err := GetInstructionType(begin.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeBeginSwap, instructionType)

	var beginArgs BeginSwapInstructionArgs
	require.NoError(t, beginArgs.Unmarshal(rawArgs))
	assert.EqualValues(t, 1_000, beginArgs.AmountIn)
	assert.EqualValues(t, 1, beginArgs.InMarketIndex)
	assert.EqualValues(t, 0, beginArgs.OutMarketIndex)
	assert.EqualValues(t, SYSVAR_INSTRUCTIONS_PUBKEY, begin.Accounts[13].PublicKey)

	end := NewEndSwapInstruction(&EndSwapInstructionAccounts{
		Vault: keys[0],
		Owner: keys[1],
	}, &EndSwapInstructionArgs{
		InMarketIndex:  1,
		OutMarketIndex: 0,
	})

	instructionType, rawArgs, err = GetInstructionType(end.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeEndSwap, instructionType)

	var endArgs EndSwapInstructionArgs
	require.NoError(t, endArgs.Unmarshal(rawArgs))
	assert.EqualValues(t, 1, endArgs.InMarketIndex)
}

func TestGetInstructionType_Invalid(t *testing.T) {
	_, _, err := GetInstructionType([]byte{1, 2, 3})
	assert.Equal(t, ErrInvalidInstructionData, err)

	_, _, err = GetInstructionType(make([]byte, 8))
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestErrorCode(t *testing.T) {
	assert.EqualValues(t, 6000, InvalidQuartzAccount)
	assert.EqualValues(t, 6007, InvalidStakeAccountAuthority)
	assert.EqualValues(t, 6009, VaultDisabled)
	assert.Equal(t, "InvalidInitPayer", InvalidInitPayer.String())
	assert.Equal(t, "ConstraintSeeds", AnchorConstraintSeeds.String())
	assert.Equal(t, "ErrorCode(1)", ErrorCode(1).String())
}

func generateKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
