package submit

import (
	"fmt"

	"github.com/code-payments/vault-server/pkg/solana"
)

type Status uint8

const (
	StatusUnknown Status = iota

	// StatusConfirmed means the transaction landed without error at the
	// requested commitment.
	StatusConfirmed

	// StatusCancelled means the signer declined. Nothing was submitted.
	StatusCancelled

	// StatusExpired means the blockhash expired without the transaction
	// landing. It can never land, so the caller may rebuild and resubmit.
	StatusExpired

	// StatusRejected means the ledger returned an error for the transaction,
	// either at preflight or after landing.
	StatusRejected

	// StatusNotSubmitted means the transaction was never sent, for example
	// because the blockhash couldn't be fetched.
	StatusNotSubmitted
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	case StatusRejected:
		return "rejected"
	case StatusNotSubmitted:
		return "not_submitted"
	}
	return "unknown"
}

// Outcome is the result of executing a single plan.
type Outcome struct {
	Status Status

	// Signature is empty when the transaction was never signed.
	Signature solana.Signature

	// LastValidBlockHeight is the height after which the transaction can no
	// longer land. Zero when nothing was submitted.
	LastValidBlockHeight uint64

	// Err is set for every status other than confirmed and cancelled.
	Err *ClassifiedError
}

// NothingHappened reports whether the plan is guaranteed to have had no effect
// on chain. Rejected and unknown outcomes return false: a rejection may have
// charged a fee, and an unknown transaction may still land.
func (o *Outcome) NothingHappened() bool {
	switch o.Status {
	case StatusCancelled, StatusExpired, StatusNotSubmitted:
		return true
	}
	return false
}

// IsSuccess reports whether the plan's effects landed.
func (o *Outcome) IsSuccess() bool {
	return o.Status == StatusConfirmed
}

func (o *Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s(%s): %v", o.Status, o.Signature, o.Err)
	}
	return fmt.Sprintf("%s(%s)", o.Status, o.Signature)
}
