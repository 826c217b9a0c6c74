package intent

import (
	"errors"
	"time"

	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

type State uint8

const (
	StateUnknown State = iota
	StateConfirmed
	StateCancelled
	StateExpired
	StateRejected
	StateNotSubmitted

	// StateUnresolved is a submitted transaction whose outcome wasn't
	// observed. It must be resolved against the chain before the owner's next
	// operation is composed.
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	case StateRejected:
		return "rejected"
	case StateNotSubmitted:
		return "not_submitted"
	case StateUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// IsTerminal reports whether the intent's on-chain effect is settled.
func (s State) IsTerminal() bool {
	switch s {
	case StateConfirmed, StateCancelled, StateExpired, StateRejected, StateNotSubmitted:
		return true
	}
	return false
}

// Record is a single operation requested against a vault and its outcome.
type Record struct {
	Id uint64

	IntentId string

	Owner string
	Vault string

	Operation   lifecycle.Operation
	MarketIndex uint16
	Amount      uint64
	IsAll       bool

	Signature            *string
	LastValidBlockHeight uint64

	State State

	ErrorClass   *string
	ErrorMessage *string

	Version uint64

	CreatedAt time.Time
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		IntentId: r.IntentId,

		Owner: r.Owner,
		Vault: r.Vault,

		Operation:   r.Operation,
		MarketIndex: r.MarketIndex,
		Amount:      r.Amount,
		IsAll:       r.IsAll,

		Signature:            pointer.StringCopy(r.Signature),
		LastValidBlockHeight: r.LastValidBlockHeight,

		State: r.State,

		ErrorClass:   pointer.StringCopy(r.ErrorClass),
		ErrorMessage: pointer.StringCopy(r.ErrorMessage),

		Version: r.Version,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.IntentId = r.IntentId

	dst.Owner = r.Owner
	dst.Vault = r.Vault

	dst.Operation = r.Operation
	dst.MarketIndex = r.MarketIndex
	dst.Amount = r.Amount
	dst.IsAll = r.IsAll

	dst.Signature = pointer.StringCopy(r.Signature)
	dst.LastValidBlockHeight = r.LastValidBlockHeight

	dst.State = r.State

	dst.ErrorClass = pointer.StringCopy(r.ErrorClass)
	dst.ErrorMessage = pointer.StringCopy(r.ErrorMessage)

	dst.Version = r.Version

	dst.CreatedAt = r.CreatedAt
}

func (r *Record) Validate() error {
	if len(r.IntentId) == 0 {
		return errors.New("intent id is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if len(r.Vault) == 0 {
		return errors.New("vault is required")
	}

	if r.Operation == lifecycle.OperationUnknown {
		return errors.New("operation is required")
	}

	if r.IsAll && r.Amount != 0 {
		return errors.New("amount cannot be set along with all")
	}

	if r.Signature != nil && len(*r.Signature) == 0 {
		return errors.New("signature is required when set")
	}

	switch r.State {
	case StateConfirmed, StateRejected, StateUnresolved:
		if r.Signature == nil {
			return errors.New("signature is required for submitted intents")
		}
	case StateUnknown:
		return errors.New("state is required")
	}

	if r.State == StateUnresolved && r.LastValidBlockHeight == 0 {
		return errors.New("last valid block height is required for unresolved intents")
	}

	if r.ErrorClass != nil && r.ErrorMessage == nil {
		return errors.New("error message is required when an error class is set")
	}

	return nil
}
