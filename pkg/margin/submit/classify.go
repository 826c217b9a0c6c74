package submit

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/transaction"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

type Class uint8

const (
	// ClassUnknown is a program failure that doesn't fall into any other
	// class.
	ClassUnknown Class = iota

	// ClassAuthorization means a required signer or owner check failed.
	ClassAuthorization

	// ClassStatePrecondition means the accounts weren't in the state the
	// action requires, for example a vault that already exists.
	ClassStatePrecondition

	// ClassCapacity means a balance, collateral or market limit was hit.
	ClassCapacity

	// ClassCancellation means the user declined to sign.
	ClassCancellation

	// ClassTransient covers expiry, network failures and timeouts.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassAuthorization:
		return "authorization"
	case ClassStatePrecondition:
		return "state_precondition"
	case ClassCapacity:
		return "capacity"
	case ClassCancellation:
		return "cancellation"
	case ClassTransient:
		return "transient"
	}
	return "unknown"
}

// ClassifiedError wraps an execution failure with its class.
type ClassifiedError struct {
	Class Class
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func newClassifiedError(err error) *ClassifiedError {
	return &ClassifiedError{
		Class: Classify(err),
		Err:   err,
	}
}

// ClassOf returns the class of a classified error anywhere in err's chain.
func ClassOf(err error) (Class, bool) {
	var classified *ClassifiedError
	if !errors.As(err, &classified) {
		return ClassUnknown, false
	}
	return classified.Class, true
}

// The system program's "account already in use"
const systemAccountInUse = 0

// The vault's and Drift's custom codes both start at 6000. Drift's errors
// surface through the vault's CPI at the vault instruction's index, so the
// raising program isn't known and codes both define are resolved by
// customErrorOverlap.
var vaultErrorClasses = map[vault.ErrorCode]Class{
	vault.InvalidQuartzAccount:   ClassAuthorization,
	vault.InvalidInitPayer:       ClassAuthorization,
	vault.AnchorConstraintHasOne: ClassAuthorization,
	vault.AnchorConstraintSigner: ClassAuthorization,
	vault.AnchorConstraintSeeds:  ClassAuthorization,
	vault.AnchorAccountNotSigner: ClassAuthorization,

	vault.InvalidMintAddress:           ClassStatePrecondition,
	vault.InvalidStakeAccountData:      ClassStatePrecondition,
	vault.InvalidStakeAccountAuthority: ClassStatePrecondition,
	vault.StakeAccountNotInitialized:   ClassStatePrecondition,
	vault.VaultDisabled:                ClassStatePrecondition,
	vault.DriftAccountOpen:             ClassStatePrecondition,
	vault.AnchorAccountNotInitialized:  ClassStatePrecondition,

	vault.InsufficientFunds: ClassCapacity,
}

var driftErrorClasses = map[drift.ErrorCode]Class{
	drift.UserCantBeDeleted:           ClassStatePrecondition,
	drift.ReduceOnlyWithdrawIncreased: ClassStatePrecondition,
	drift.UserHasOpenSwap:             ClassStatePrecondition,
	drift.InvalidSpotPosition:         ClassStatePrecondition,

	drift.InsufficientDeposit:          ClassCapacity,
	drift.InsufficientCollateral:       ClassCapacity,
	drift.MaxNumberOfPositions:         ClassCapacity,
	drift.SpotMarketMaxDepositExceeded: ClassCapacity,
	drift.MarketWithdrawPaused:         ClassCapacity,
	drift.MarketDepositPaused:          ClassCapacity,
}

var customErrorOverlap = map[int]Class{
	// InsufficientFunds and InsufficientDeposit
	6002: ClassCapacity,

	// Read as Drift's InsufficientCollateral. The vault only raises
	// InvalidMintAddress for a mint that wasn't derived from the vault config.
	6003: ClassCapacity,

	// Read as the vault's InvalidStakeAccountData, since the stake account is
	// caller supplied. Drift's MaxNumberOfPositions is reported as a state
	// precondition too.
	6005: ClassStatePrecondition,
}

func classifyCustomError(code int) Class {
	if code == systemAccountInUse {
		return ClassStatePrecondition
	}
	if class, ok := customErrorOverlap[code]; ok {
		return class
	}
	if class, ok := vaultErrorClasses[vault.ErrorCode(code)]; ok {
		return class
	}
	if class, ok := driftErrorClasses[drift.ErrorCode(code)]; ok {
		return class
	}
	return ClassUnknown
}

var instructionErrorClasses = map[solana.InstructionErrorKey]Class{
	solana.InstructionErrorMissingRequiredSignature:  ClassAuthorization,
	solana.InstructionErrorIllegalOwner:              ClassAuthorization,
	solana.InstructionErrorAccountAlreadyInitialized: ClassStatePrecondition,
	solana.InstructionErrorUninitializedAccount:      ClassStatePrecondition,
	solana.InstructionErrorInvalidAccountOwner:       ClassStatePrecondition,
	solana.InstructionErrorInsufficientFunds:         ClassCapacity,
}

var transactionErrorClasses = map[solana.TransactionErrorKey]Class{
	solana.TransactionErrorSignatureFailure:             ClassAuthorization,
	solana.TransactionErrorMissingSignatureForFee:       ClassAuthorization,
	solana.TransactionErrorInsufficientFundsForFee:      ClassCapacity,
	solana.TransactionErrorBlockhashNotFound:            ClassTransient,
	solana.TransactionErrorAccountInUse:                 ClassTransient,
	solana.TransactionErrorClusterMaintenance:           ClassTransient,
	solana.TransactionErrorWouldExceedMaxBlockCostLimit: ClassTransient,
}

// Classify assigns a class to an execution failure. Errors that aren't
// transaction or instruction errors are treated as transient.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled) {
		return ClassCancellation
	}

	if class, ok := ClassOf(err); ok {
		return class
	}

	if code, _, ok := solana.CustomErrorCode(err); ok {
		return classifyCustomError(code)
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		if ixnErr := txErr.InstructionError(); ixnErr != nil {
			if class, ok := instructionErrorClasses[ixnErr.ErrorKey()]; ok {
				return class
			}
			return ClassUnknown
		}

		if class, ok := transactionErrorClasses[txErr.ErrorKey()]; ok {
			return class
		}
		return ClassUnknown
	}

	switch {
	case errors.Is(err, ErrTransactionTooLarge):
		return ClassCapacity
	case errors.Is(err, ErrMissingSignature),
		errors.Is(err, solana.ErrSignerNotInAccountList),
		errors.Is(err, solana.ErrSignerNotRequired):
		return ClassAuthorization
	case errors.Is(err, transaction.ErrEmptyPlan):
		return ClassUnknown
	}

	return ClassTransient
}
