package action

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

type Action uint8

const (
	Unknown Action = iota
	Deposit
	Withdraw
	Borrow
	Repay
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrAllNotSupported = errors.New("all is only supported when reducing a position")
	ErrZeroAmount      = errors.New("amount must be positive")
	ErrAmountWithAll   = errors.New("amount cannot be set along with all")
)

// AmountAll is passed to the vault program in place of an amount to have it
// resolve the full position balance on chain.
const AmountAll uint64 = math.MaxUint64

func (a Action) String() string {
	switch a {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	case Borrow:
		return "borrow"
	case Repay:
		return "repay"
	}
	return "unknown"
}

func FromString(value string) (Action, error) {
	switch value {
	case "deposit":
		return Deposit, nil
	case "withdraw":
		return Withdraw, nil
	case "borrow":
		return Borrow, nil
	case "repay":
		return Repay, nil
	}
	return Unknown, errors.Wrapf(ErrUnknownAction, "%q", value)
}

// IsDeposit reports whether the action moves funds into the vault's Drift
// account. Deposit and Repay both use the vault's deposit instruction.
func (a Action) IsDeposit() bool {
	return a == Deposit || a == Repay
}

// IsReduceOnly reports whether the action may only shrink an existing
// position.
func (a Action) IsReduceOnly() bool {
	return a == Withdraw || a == Repay
}

// Request is a single balance changing action against one spot market.
type Request struct {
	Action      Action
	MarketIndex uint16
	Amount      uint64
	All         bool
}

func (r *Request) Validate() error {
	switch r.Action {
	case Deposit, Withdraw, Borrow, Repay:
	default:
		return ErrUnknownAction
	}

	if r.All {
		if !r.Action.IsReduceOnly() {
			return errors.Wrap(ErrAllNotSupported, r.Action.String())
		}
		if r.Amount != 0 {
			return ErrAmountWithAll
		}
		return nil
	}

	if r.Amount == 0 {
		return ErrZeroAmount
	}
	return nil
}

// InstructionAmount is the amount encoded into the vault instruction.
func (r *Request) InstructionAmount() uint64 {
	if r.All {
		return AmountAll
	}
	return r.Amount
}

func (r *Request) String() string {
	if r.All {
		return fmt.Sprintf("%s(market=%d,amount=all)", r.Action, r.MarketIndex)
	}
	return fmt.Sprintf("%s(market=%d,amount=%d)", r.Action, r.MarketIndex, r.Amount)
}
