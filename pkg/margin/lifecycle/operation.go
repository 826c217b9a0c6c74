package lifecycle

import (
	"github.com/pkg/errors"
)

type Operation uint8

const (
	OperationUnknown Operation = iota
	OperationOpenVault
	OperationInitUser
	OperationRegister
	OperationDeposit
	OperationWithdraw
	OperationBorrow
	OperationRepay
	OperationSwapAndRepay
	OperationDelegateStake
	OperationCloseVault
)

var ErrInvalidTransition = errors.New("operation not allowed in the vault's current state")

func (o Operation) String() string {
	switch o {
	case OperationOpenVault:
		return "open_vault"
	case OperationInitUser:
		return "init_user"
	case OperationRegister:
		return "register"
	case OperationDeposit:
		return "deposit"
	case OperationWithdraw:
		return "withdraw"
	case OperationBorrow:
		return "borrow"
	case OperationRepay:
		return "repay"
	case OperationSwapAndRepay:
		return "swap_and_repay"
	case OperationDelegateStake:
		return "delegate_stake"
	case OperationCloseVault:
		return "close_vault"
	}
	return "unknown"
}

func OperationFromString(value string) (Operation, error) {
	for o := OperationOpenVault; o <= OperationCloseVault; o++ {
		if o.String() == value {
			return o, nil
		}
	}
	return OperationUnknown, errors.Errorf("unknown operation: %s", value)
}

// Stake delegation has to happen before the vault exists, since init_user
// checks the stake account's authorities.
var allowedOperations = map[State][]Operation{
	StateUninitialized: {
		OperationOpenVault,
		OperationInitUser,
		OperationDelegateStake,
	},
	StateRegistered: {
		OperationRegister,
		OperationCloseVault,
	},
	StateActive: {
		OperationDeposit,
		OperationWithdraw,
		OperationBorrow,
		OperationRepay,
		OperationSwapAndRepay,
	},
	StateClosing: {
		OperationDeposit,
		OperationBorrow,
		OperationCloseVault,
	},
	StateClosed: {
		OperationOpenVault,
		OperationInitUser,
		OperationDelegateStake,
	},
}

// CanTransition validates an operation against the vault's current state.
func CanTransition(from State, operation Operation) error {
	for _, allowed := range allowedOperations[from] {
		if allowed == operation {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "%s in state %s", operation, from)
}
