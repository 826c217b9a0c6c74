package stake

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/stake/state.rs
const AccountSize = 200

type State uint32

const (
	StateUninitialized State = iota
	StateInitialized
	StateStake
	StateRewardsPool
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStake:
		return "stake"
	case StateRewardsPool:
		return "rewards_pool"
	}
	return "unknown"
}

var ErrInvalidStakeAccount = errors.New("invalid stake account")

// Account is the meta portion of a stake account. Delegation details are not
// parsed.
type Account struct {
	State             State
	RentExemptReserve uint64
	Staker            ed25519.PublicKey
	Withdrawer        ed25519.PublicKey
	LockupTimestamp   int64
	LockupEpoch       uint64
	LockupCustodian   ed25519.PublicKey
}

// IsInitialized reports whether the account carries authorities.
func (a *Account) IsInitialized() bool {
	return a.State == StateInitialized || a.State == StateStake
}

func (a *Account) Marshal() []byte {
	b := make([]byte, AccountSize)

	binary.LittleEndian.PutUint32(b, uint32(a.State))
	binary.LittleEndian.PutUint64(b[4:], a.RentExemptReserve)
	copy(b[12:], a.Staker)
	copy(b[44:], a.Withdrawer)
	binary.LittleEndian.PutUint64(b[76:], uint64(a.LockupTimestamp))
	binary.LittleEndian.PutUint64(b[84:], a.LockupEpoch)
	copy(b[92:], a.LockupCustodian)

	return b
}

func (a *Account) Unmarshal(b []byte) error {
	if len(b) != AccountSize {
		return ErrInvalidStakeAccount
	}

	a.State = State(binary.LittleEndian.Uint32(b))
	if a.State > StateRewardsPool {
		return ErrInvalidStakeAccount
	}

	a.RentExemptReserve = binary.LittleEndian.Uint64(b[4:])
	a.Staker = append(ed25519.PublicKey{}, b[12:44]...)
	a.Withdrawer = append(ed25519.PublicKey{}, b[44:76]...)
	a.LockupTimestamp = int64(binary.LittleEndian.Uint64(b[76:]))
	a.LockupEpoch = binary.LittleEndian.Uint64(b[84:])
	a.LockupCustodian = append(ed25519.PublicKey{}, b[92:124]...)

	return nil
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"StakeAccount{state=%s,staker=%s,withdrawer=%s}",
		a.State,
		base58.Encode(a.Staker),
		base58.Encode(a.Withdrawer),
	)
}
