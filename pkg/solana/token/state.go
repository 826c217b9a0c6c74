package token

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana/binary"
)

// Account and mint layouts are fixed size.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program/src/state.rs
const (
	AccountSize = 165
	MintSize    = 82
)

// COption tags in the token program are 4 bytes wide.
const optionSize = 4

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// Account is the state of an SPL token account.
type Account struct {
	Mint   ed25519.PublicKey
	Owner  ed25519.PublicKey
	Amount uint64

	// Delegate, when set, may transfer up to DelegatedAmount.
	Delegate        ed25519.PublicKey
	DelegatedAmount uint64

	State AccountState

	// IsNative holds the rent-exempt reserve of a wrapped SOL account, and is
	// nil for every other mint. Amount is the account's lamports above it.
	IsNative *uint64

	CloseAuthority ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	data := make([]byte, AccountSize)

	var offset int
	binary.PutKey32(data[offset:], a.Mint, &offset)
	binary.PutKey32(data[offset:], a.Owner, &offset)
	binary.PutUint64(data[offset:], a.Amount, &offset)
	binary.PutOptionalKey32(data[offset:], a.Delegate, &offset, optionSize)
	binary.PutUint8(data[offset:], uint8(a.State), &offset)
	binary.PutOptionalUint64(data[offset:], a.IsNative, &offset, optionSize)
	binary.PutUint64(data[offset:], a.DelegatedAmount, &offset)
	binary.PutOptionalKey32(data[offset:], a.CloseAuthority, &offset, optionSize)
	return data
}

// Unmarshal parses data into the account, reporting whether it has the size of
// a token account.
func (a *Account) Unmarshal(data []byte) bool {
	if len(data) != AccountSize {
		return false
	}

	var offset int
	var state uint8
	binary.GetKey32(data[offset:], &a.Mint, &offset)
	binary.GetKey32(data[offset:], &a.Owner, &offset)
	binary.GetUint64(data[offset:], &a.Amount, &offset)
	binary.GetOptionalKey32(data[offset:], &a.Delegate, &offset, optionSize)
	binary.GetUint8(data[offset:], &state, &offset)
	binary.GetOptionalUint64(data[offset:], &a.IsNative, &offset, optionSize)
	binary.GetUint64(data[offset:], &a.DelegatedAmount, &offset)
	binary.GetOptionalKey32(data[offset:], &a.CloseAuthority, &offset, optionSize)
	a.State = AccountState(state)
	return true
}

// Mint is the state of an SPL token mint.
type Mint struct {
	MintAuthority   ed25519.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	data := make([]byte, MintSize)

	var offset int
	binary.PutOptionalKey32(data[offset:], m.MintAuthority, &offset, optionSize)
	binary.PutUint64(data[offset:], m.Supply, &offset)
	binary.PutUint8(data[offset:], m.Decimals, &offset)
	binary.PutBool(data[offset:], m.IsInitialized, &offset)
	binary.PutOptionalKey32(data[offset:], m.FreezeAuthority, &offset, optionSize)
	return data
}

func (m *Mint) Unmarshal(data []byte) bool {
	if len(data) != MintSize {
		return false
	}

	var offset int
	binary.GetOptionalKey32(data[offset:], &m.MintAuthority, &offset, optionSize)
	binary.GetUint64(data[offset:], &m.Supply, &offset)
	binary.GetUint8(data[offset:], &m.Decimals, &offset)
	binary.GetBool(data[offset:], &m.IsInitialized, &offset)
	binary.GetOptionalKey32(data[offset:], &m.FreezeAuthority, &offset, optionSize)
	return true
}
