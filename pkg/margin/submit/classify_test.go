package submit

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

func customError(code int) error {
	return solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 1,
		Err:   solana.CustomError(code),
	})
}

func instructionError(key solana.InstructionErrorKey) error {
	return solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 0,
		Err:   errors.New(string(key)),
	})
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		err      error
		expected Class
	}{
		{customError(int(vault.InvalidQuartzAccount)), ClassAuthorization},
		{customError(int(vault.InvalidInitPayer)), ClassAuthorization},
		{customError(int(vault.AnchorConstraintHasOne)), ClassAuthorization},
		{customError(int(vault.AnchorConstraintSeeds)), ClassAuthorization},
		{instructionError(solana.InstructionErrorMissingRequiredSignature), ClassAuthorization},
		{solana.NewTransactionError(solana.TransactionErrorSignatureFailure), ClassAuthorization},
		{errors.Wrap(ErrMissingSignature, "1 signer(s)"), ClassAuthorization},

		{customError(0), ClassStatePrecondition},
		{customError(int(vault.AnchorAccountNotInitialized)), ClassStatePrecondition},
		{customError(int(vault.DriftAccountOpen)), ClassStatePrecondition},
		{customError(int(drift.UserCantBeDeleted)), ClassStatePrecondition},
		{instructionError(solana.InstructionErrorAccountAlreadyInitialized), ClassStatePrecondition},
		{instructionError(solana.InstructionErrorUninitializedAccount), ClassStatePrecondition},

		{customError(int(drift.MarketDepositPaused)), ClassCapacity},
		{customError(int(drift.SpotMarketMaxDepositExceeded)), ClassCapacity},
		{customError(int(drift.InsufficientCollateral)), ClassCapacity},
		{instructionError(solana.InstructionErrorInsufficientFunds), ClassCapacity},
		{solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee), ClassCapacity},
		{errors.Wrap(ErrTransactionTooLarge, "1300 bytes"), ClassCapacity},

		{errors.Wrap(ErrUserCancelled, "declined"), ClassCancellation},
		{context.Canceled, ClassCancellation},

		{solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound), ClassTransient},
		{errors.New("connection reset by peer"), ClassTransient},

		{customError(12345), ClassUnknown},
		{instructionError(solana.InstructionErrorInvalidArgument), ClassUnknown},
		{nil, ClassUnknown},
	} {
		assert.Equal(t, tc.expected, Classify(tc.err), "%v", tc.err)
	}
}

func TestClassify_Wrapped(t *testing.T) {
	classified := &ClassifiedError{Class: ClassCapacity, Err: errors.New("limit")}

	assert.Equal(t, ClassCapacity, Classify(errors.Wrap(classified, "context")))

	class, ok := ClassOf(errors.Wrap(classified, "context"))
	assert.True(t, ok)
	assert.Equal(t, ClassCapacity, class)

	_, ok = ClassOf(errors.New("unclassified"))
	assert.False(t, ok)

	err := customError(int(drift.MarketDepositPaused))
	assert.True(t, errors.Is(newClassifiedError(err), err))
}

func TestClassify_OverlappingCustomCodes(t *testing.T) {
	for code := range vaultErrorClasses {
		if _, ok := driftErrorClasses[drift.ErrorCode(code)]; ok {
			_, resolved := customErrorOverlap[int(code)]
			assert.True(t, resolved, "code %d is defined by both programs", code)
		}
	}

	for _, tc := range []struct {
		code     int
		expected Class
	}{
		{int(drift.InsufficientDeposit), ClassCapacity},
		{int(vault.InsufficientFunds), ClassCapacity},
		{int(drift.InsufficientCollateral), ClassCapacity},
		{int(vault.InvalidMintAddress), ClassCapacity},
		{int(vault.InvalidStakeAccountData), ClassStatePrecondition},
		{int(drift.MaxNumberOfPositions), ClassStatePrecondition},
		{int(vault.InvalidStakeAccountAuthority), ClassStatePrecondition},
		{int(drift.MarketWithdrawPaused), ClassCapacity},
	} {
		assert.Equal(t, tc.expected, Classify(customError(tc.code)), "code %d", tc.code)
	}
}
