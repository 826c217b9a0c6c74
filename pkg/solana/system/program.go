package system

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/vault-server/pkg/solana"
)

var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = iota
	// nolint:varcheck,deadcode,unused
	commandAssign
	commandTransfer
)

const (
	transferDataSize      = 4 + 8
	createAccountDataSize = 4 + 2*8 + ed25519.PublicKeySize
)

// CreateAccount allocates size bytes at address, funds it with lamports and
// assigns it to owner.
//
// Accounts:
//
//	0. [WRITE, SIGNER] funder
//	1. [WRITE, SIGNER] new account
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	data := make([]byte, createAccountDataSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], size)
	copy(data[20:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports between two system-owned accounts. It is used to fund
// a wrapped SOL token account before syncing it.
//
// Accounts:
//
//	0. [WRITE, SIGNER] source
//	1. [WRITE] destination
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, transferDataSize)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// DecodeTransfer returns the lamports moved by a transfer instruction.
func DecodeTransfer(data []byte) (uint64, error) {
	if !hasCommand(data, commandTransfer, transferDataSize) {
		return 0, solana.ErrIncorrectInstruction
	}
	return binary.LittleEndian.Uint64(data[4:]), nil
}

// CreateAccountParams are the decoded arguments of a create account instruction.
type CreateAccountParams struct {
	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecodeCreateAccount(data []byte) (*CreateAccountParams, error) {
	if !hasCommand(data, commandCreateAccount, createAccountDataSize) {
		return nil, solana.ErrIncorrectInstruction
	}

	owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(owner, data[20:])

	return &CreateAccountParams{
		Lamports: binary.LittleEndian.Uint64(data[4:]),
		Size:     binary.LittleEndian.Uint64(data[12:]),
		Owner:    owner,
	}, nil
}

func hasCommand(data []byte, command uint32, size int) bool {
	return len(data) == size && binary.LittleEndian.Uint32(data) == command
}
