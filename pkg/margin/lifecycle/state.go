package lifecycle

import (
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

type State uint8

const (
	StateUnknown State = iota
	StateUninitialized
	StateRegistered
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

func FromString(value string) (State, error) {
	switch value {
	case "uninitialized":
		return StateUninitialized, nil
	case "registered":
		return StateRegistered, nil
	case "active":
		return StateActive, nil
	case "closing":
		return StateClosing, nil
	case "closed":
		return StateClosed, nil
	}
	return StateUnknown, errors.Errorf("unknown state: %s", value)
}

// IsOpen reports whether the vault account exists on chain in this state.
func (s State) IsOpen() bool {
	switch s {
	case StateRegistered, StateActive, StateClosing:
		return true
	}
	return false
}

// Infer derives a vault's state from its on-chain accounts. Either account may
// be nil when it doesn't exist. previouslyKnown distinguishes a vault that was
// closed from one that never existed, since both leave nothing on chain.
func Infer(vaultAccount *vault.VaultAccount, driftUser *drift.UserAccount, previouslyKnown bool) State {
	if vaultAccount == nil {
		if previouslyKnown {
			return StateClosed
		}
		return StateUninitialized
	}

	if driftUser == nil {
		return StateRegistered
	}

	if driftUser.HasOpenPositions() {
		return StateActive
	}
	return StateClosing
}
