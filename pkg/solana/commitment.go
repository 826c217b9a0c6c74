package solana

import (
	"github.com/pkg/errors"
)

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

// Commitment is the level of finality a query or submission waits for.
type Commitment struct {
	Commitment string `json:"commitment"`
}

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString maps a configured commitment level to a Commitment.
func CommitmentFromString(level string) (Commitment, error) {
	for _, commitment := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		if commitment.Commitment == level {
			return commitment, nil
		}
	}
	return Commitment{}, errors.Errorf("unknown commitment level: %s", level)
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction is rooted
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized():
		return true
	case s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	}
	return *s.Confirmations > 0
}

// Reached reports whether the status satisfies the commitment level.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentFinalized:
		return s.Finalized()
	case CommitmentConfirmed:
		return s.Confirmed()
	}
	return true
}

// RecentBlockhash is a blockhash along with the last block height at which a
// transaction referencing it can still be processed.
type RecentBlockhash struct {
	Blockhash            Blockhash
	LastValidBlockHeight uint64
}
