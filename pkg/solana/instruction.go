package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var ErrIncorrectInstruction = errors.New("incorrect instruction")

// AccountMeta is an account reference within an instruction, along with the
// permissions the instruction needs on it.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta creates a writable AccountMeta.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a readonly AccountMeta.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

func (m AccountMeta) String() string {
	var flags string
	if m.IsSigner {
		flags += "s"
	}
	if m.IsWritable {
		flags += "w"
	}
	return fmt.Sprintf("%s[%s]", base58.Encode(m.PublicKey), flags)
}

// SortableAccountMeta orders accounts by the message account rules: payer
// first, then signers, then writable accounts, with programs last.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
type SortableAccountMeta []AccountMeta

func (s SortableAccountMeta) Len() int {
	return len(s)
}

func (s SortableAccountMeta) Less(i int, j int) bool {
	a, b := s[i], s[j]

	if a.isPayer != b.isPayer {
		return a.isPayer
	}
	if a.isProgram != b.isProgram {
		return !a.isProgram
	}
	if a.IsSigner != b.IsSigner {
		return a.IsSigner
	}
	if a.IsWritable != b.IsWritable {
		return a.IsWritable
	}

	return bytes.Compare(a.PublicKey, b.PublicKey) < 0
}

func (s SortableAccountMeta) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// RequiredSigners returns the unique set of accounts the instruction expects to
// have signed the transaction.
func (i Instruction) RequiredSigners() []ed25519.PublicKey {
	var signers []ed25519.PublicKey
	for _, account := range i.Accounts {
		if account.IsSigner && indexOf(signers, account.PublicKey) < 0 {
			signers = append(signers, account.PublicKey)
		}
	}
	return signers
}

// CompiledInstruction is an instruction whose accounts have been replaced by
// indexes into the message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
