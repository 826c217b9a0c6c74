package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/system"
)

const maxInvokeDepth = 4

var errInsufficientLamports = errors.New("insufficient lamports")

// Account is the ledger's view of an on-chain account.
type Account struct {
	Lamports   uint64
	Owner      ed25519.PublicKey
	Data       []byte
	Executable bool
}

func (a *Account) clone() *Account {
	cloned := &Account{
		Lamports:   a.Lamports,
		Owner:      append(ed25519.PublicKey{}, a.Owner...),
		Executable: a.Executable,
	}
	if a.Data != nil {
		cloned.Data = append([]byte{}, a.Data...)
	}
	return cloned
}

// Program emulates an on-chain program. Returned errors abort the enclosing
// transaction. Use solana.CustomError for program error codes and
// InstructionError for the runtime's named instruction errors.
type Program interface {
	Execute(env *Env, ixn *Invocation) error
}

// InstructionError is a named runtime instruction error.
type InstructionError solana.InstructionErrorKey

func (e InstructionError) Error() string {
	return string(e)
}

// Invocation is a single instruction being executed, either at the top level
// of a transaction or through a cross-program invocation.
type Invocation struct {
	Program  ed25519.PublicKey
	Accounts []solana.AccountMeta
	Data     []byte
}

// Account returns the account at index, failing the way the runtime does when
// an instruction is short of accounts.
func (i *Invocation) Account(index int) (ed25519.PublicKey, error) {
	if index >= len(i.Accounts) {
		return nil, InstructionError(solana.InstructionErrorNotEnoughAccountKeys)
	}
	return i.Accounts[index].PublicKey, nil
}

// Env is the copy-on-write view of the ledger a transaction executes against.
// Nothing written through it is visible outside the transaction until every
// instruction succeeds.
type Env struct {
	ledger       *Ledger
	overlay      map[string]*Account
	writable     map[string]bool
	signers      map[string]bool
	instructions []solana.Instruction
	index        int
	depth        int
	stash        map[string]uint64
}

func newEnv(ledger *Ledger, instructions []solana.Instruction, writable, signers map[string]bool) *Env {
	return &Env{
		ledger:       ledger,
		overlay:      make(map[string]*Account),
		writable:     writable,
		signers:      signers,
		instructions: instructions,
		stash:        make(map[string]uint64),
	}
}

// Get returns a copy of the account, if it exists.
func (e *Env) Get(address ed25519.PublicKey) (*Account, bool) {
	if account, ok := e.overlay[string(address)]; ok {
		if account == nil {
			return nil, false
		}
		return account.clone(), true
	}

	account, ok := e.ledger.accounts[string(address)]
	if !ok {
		return nil, false
	}
	return account.clone(), true
}

func (e *Env) Exists(address ed25519.PublicKey) bool {
	_, ok := e.Get(address)
	return ok
}

// Set stores the account. The account must be writable in the transaction.
func (e *Env) Set(address ed25519.PublicKey, account *Account) error {
	if !e.writable[string(address)] {
		return InstructionError(solana.InstructionErrorReadonlyDataModified)
	}
	e.overlay[string(address)] = account.clone()
	return nil
}

// Delete removes the account. The account must be writable in the transaction.
func (e *Env) Delete(address ed25519.PublicKey) error {
	if !e.writable[string(address)] {
		return InstructionError(solana.InstructionErrorReadonlyDataModified)
	}
	e.overlay[string(address)] = nil
	return nil
}

// IsSigner reports whether the address signed the transaction, or is a PDA
// signing for the current cross-program invocation.
func (e *Env) IsSigner(address ed25519.PublicKey) bool {
	return e.signers[string(address)]
}

// IsWritable reports whether the transaction locked the address for writing.
func (e *Env) IsWritable(address ed25519.PublicKey) bool {
	return e.writable[string(address)]
}

// Instructions returns every top level instruction in the transaction, as a
// program would read them from the instructions sysvar.
func (e *Env) Instructions() []solana.Instruction {
	return e.instructions
}

// CurrentIndex is the index of the top level instruction being executed.
func (e *Env) CurrentIndex() int {
	return e.index
}

// Stash keeps a value for the remainder of the transaction, for programs that
// pair instructions.
func (e *Env) Stash(key string, value uint64) {
	e.stash[key] = value
}

// Unstash removes and returns a stashed value.
func (e *Env) Unstash(key string) (uint64, bool) {
	value, ok := e.stash[key]
	delete(e.stash, key)
	return value, ok
}

// Rent returns the rent exempt minimum for an account of the given size.
func (e *Env) Rent(size int) uint64 {
	return rentExemptMinimum(uint64(size))
}

// TransferLamports moves lamports between accounts. The source must be
// writable and hold enough lamports.
func (e *Env) TransferLamports(from, to ed25519.PublicKey, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	if bytes.Equal(from, to) {
		return nil
	}

	source, ok := e.Get(from)
	if !ok || source.Lamports < lamports {
		return errInsufficientLamports
	}

	destination, ok := e.Get(to)
	if !ok {
		destination = &Account{Owner: system.ProgramKey[:]}
	}

	source.Lamports -= lamports
	destination.Lamports += lamports

	if err := e.Set(from, source); err != nil {
		return err
	}
	return e.Set(to, destination)
}

// CreateAccount funds and allocates a program derived account through the
// system program, signing for the new address.
func (e *Env) CreateAccount(funder, address, owner ed25519.PublicKey, size int) error {
	return e.Invoke(
		system.CreateAccount(funder, address, owner, e.Rent(size), uint64(size)),
		address,
	)
}

// CloseAccount deletes an account and returns its lamports to the destination.
func (e *Env) CloseAccount(address, destination ed25519.PublicKey) error {
	account, ok := e.Get(address)
	if !ok {
		return InstructionError(solana.InstructionErrorUninitializedAccount)
	}

	if err := e.TransferLamports(address, destination, account.Lamports); err != nil {
		return err
	}
	return e.Delete(address)
}

// Invoke runs an instruction as a cross-program invocation. The PDAs in
// signers sign for the duration of the call.
func (e *Env) Invoke(ixn solana.Instruction, signers ...ed25519.PublicKey) error {
	if e.depth >= maxInvokeDepth {
		return InstructionError(solana.InstructionErrorCallDepth)
	}

	program, ok := e.ledger.programs[string(ixn.Program)]
	if !ok {
		return InstructionError(solana.InstructionErrorUnsupportedProgramID)
	}

	parentSigners := e.signers
	childSigners := make(map[string]bool, len(parentSigners)+len(signers))
	for k, v := range parentSigners {
		childSigners[k] = v
	}
	for _, signer := range signers {
		childSigners[string(signer)] = true
	}

	for _, account := range ixn.Accounts {
		if account.IsSigner && !childSigners[string(account.PublicKey)] {
			return InstructionError(solana.InstructionErrorMissingRequiredSignature)
		}
		if account.IsWritable && !e.writable[string(account.PublicKey)] {
			return InstructionError(solana.InstructionErrorReadonlyDataModified)
		}
	}

	e.signers = childSigners
	e.depth++
	defer func() {
		e.signers = parentSigners
		e.depth--
	}()

	return program.Execute(e, &Invocation{
		Program:  ixn.Program,
		Accounts: ixn.Accounts,
		Data:     ixn.Data,
	})
}

func rentExemptMinimum(size uint64) uint64 {
	// Rent is 3480 lamports per byte-year, exempt at two years, with a 128 byte
	// account overhead.
	return (128 + size) * 3480 * 2
}
