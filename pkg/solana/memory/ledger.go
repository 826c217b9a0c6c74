package memory

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/solana"
	address_lookup_table "github.com/code-payments/vault-server/pkg/solana/addresslookuptable"
	compute_budget "github.com/code-payments/vault-server/pkg/solana/computebudget"
	"github.com/code-payments/vault-server/pkg/solana/stake"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

const (
	// MaxProcessingAge is the number of blocks a blockhash stays valid for.
	MaxProcessingAge = 150

	// LamportsPerSignature is the base transaction fee.
	LamportsPerSignature = 5000
)

// ErrUnreachable is returned by SubmitTransaction when the ledger is
// configured to behave as if the RPC node could not be reached.
var ErrUnreachable = errors.New("rpc node unreachable")

// SubmitMode controls what happens to submitted transactions.
type SubmitMode int

const (
	// SubmitModeProcess executes transactions immediately.
	SubmitModeProcess SubmitMode = iota

	// SubmitModeDrop accepts transactions without ever landing them, the way
	// a leader silently drops a transaction.
	SubmitModeDrop

	// SubmitModeUnreachable fails every submission with a transport error
	// before the transaction reaches the ledger.
	SubmitModeUnreachable
)

// InstructionHook runs before each top level instruction. A non-nil error
// fails the instruction as if the program had returned it.
type InstructionHook func(index int, ixn solana.Instruction) error

// Ledger is an in-memory, single node ledger implementing solana.Client.
// Transactions execute atomically against registered program emulators and
// are finalized as soon as they land.
type Ledger struct {
	log *logrus.Entry

	mu sync.Mutex

	accounts map[string]*Account
	programs map[string]Program

	slot        uint64
	blockHeight uint64
	blockhash   solana.Blockhash
	lastValid   map[solana.Blockhash]uint64

	statuses map[solana.Signature]*solana.SignatureStatus

	submitMode    SubmitMode
	preflight     bool
	hook          InstructionHook
	advanceOnRead uint64
	submissions   int
}

// NewLedger returns a ledger with the system, token, associated token account,
// compute budget and stake programs installed.
func NewLedger() *Ledger {
	l := &Ledger{
		log:       logrus.StandardLogger().WithField("type", "solana/memory"),
		accounts:  make(map[string]*Account),
		programs:  make(map[string]Program),
		lastValid: make(map[solana.Blockhash]uint64),
		statuses:  make(map[solana.Signature]*solana.SignatureStatus),
		preflight: true,
	}

	l.RegisterProgram(system.ProgramKey[:], &SystemProgram{})
	l.RegisterProgram(token.ProgramKey, &TokenProgram{})
	l.RegisterProgram(token.AssociatedTokenAccountProgramKey, &AssociatedTokenAccountProgram{})
	l.RegisterProgram(compute_budget.ProgramKey, &ComputeBudgetProgram{})
	l.RegisterProgram(stake.ProgramKey, &StakeProgram{})

	l.mu.Lock()
	l.newBlock()
	l.mu.Unlock()

	return l
}

// RegisterProgram installs an emulator at the program address.
func (l *Ledger) RegisterProgram(address ed25519.PublicKey, program Program) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.programs[string(address)] = program
	l.accounts[string(address)] = &Account{
		Lamports:   1,
		Owner:      bpfLoaderKey,
		Executable: true,
	}
}

// SetAccount overwrites the account at address.
func (l *Ledger) SetAccount(address ed25519.PublicKey, account *Account) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[string(address)] = account.clone()
}

// GetAccount returns a copy of the account at address.
func (l *Ledger) GetAccount(address ed25519.PublicKey) (*Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[string(address)]
	if !ok {
		return nil, false
	}
	return account.clone(), true
}

// Airdrop credits lamports to a system owned account, creating it if needed.
func (l *Ledger) Airdrop(address ed25519.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[string(address)]
	if !ok {
		account = &Account{Owner: system.ProgramKey[:]}
		l.accounts[string(address)] = account
	}
	account.Lamports += lamports
}

// CreateMint installs an initialized mint.
func (l *Ledger) CreateMint(address ed25519.PublicKey, decimals uint8) {
	mint := token.Mint{
		Decimals:      decimals,
		IsInitialized: true,
	}
	l.SetAccount(address, &Account{
		Lamports: rentExemptMinimum(token.MintSize),
		Owner:    token.ProgramKey,
		Data:     mint.Marshal(),
	})
}

// CreateTokenAccount installs an initialized token account holding amount.
// Accounts for the wrapped SOL mint also hold amount in lamports above the
// rent exempt reserve.
func (l *Ledger) CreateTokenAccount(address, mint, owner ed25519.PublicKey, amount uint64) {
	reserve := rentExemptMinimum(token.AccountSize)

	account := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}

	lamports := reserve
	if bytes.Equal(mint, token.WrappedSolMint) {
		account.IsNative = &reserve
		lamports += amount
	}

	l.SetAccount(address, &Account{
		Lamports: lamports,
		Owner:    token.ProgramKey,
		Data:     account.Marshal(),
	})
}

// CreateAddressLookupTable installs an active lookup table holding addresses.
func (l *Ledger) CreateAddressLookupTable(address ed25519.PublicKey, addresses []ed25519.PublicKey) {
	table := address_lookup_table.AddressLookupTableAccount{
		DeactivationSlot: math.MaxUint64,
		Addresses:        addresses,
	}
	l.SetAccount(address, &Account{
		Lamports: 1,
		Owner:    address_lookup_table.ProgramKey,
		Data:     table.Marshal(),
	})
}

// TokenBalance returns the amount held by a token account, or zero if the
// account does not exist.
func (l *Ledger) TokenBalance(address ed25519.PublicKey) uint64 {
	account, ok := l.GetAccount(address)
	if !ok {
		return 0
	}

	var tokenAccount token.Account
	if !tokenAccount.Unmarshal(account.Data) {
		return 0
	}
	return tokenAccount.Amount
}

// SetSubmitMode changes how subsequent submissions are handled.
func (l *Ledger) SetSubmitMode(mode SubmitMode) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitMode = mode
}

// SetPreflight controls whether failed transactions are returned from
// SubmitTransaction (the default), or land on the ledger with an error status
// and a charged fee.
func (l *Ledger) SetPreflight(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.preflight = enabled
}

// SetInstructionHook installs a hook that runs before every top level
// instruction. A nil hook removes it.
func (l *Ledger) SetInstructionHook(hook InstructionHook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hook = hook
}

// SetAdvanceOnRead makes every GetBlockHeight call produce n blocks first,
// simulating time passing while a caller polls.
func (l *Ledger) SetAdvanceOnRead(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advanceOnRead = n
}

// Advance produces n empty blocks.
func (l *Ledger) Advance(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		l.newBlock()
	}
}

// Submissions returns the number of transactions submitted, regardless of
// outcome.
func (l *Ledger) Submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.submissions
}

func (l *Ledger) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	account, ok := l.GetAccount(address)
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:       account.Data,
		Owner:      account.Owner,
		Lamports:   account.Lamports,
		Executable: account.Executable,
	}, nil
}

func (l *Ledger) GetBalance(address ed25519.PublicKey) (uint64, error) {
	account, ok := l.GetAccount(address)
	if !ok {
		return 0, nil
	}
	return account.Lamports, nil
}

func (l *Ledger) GetBlockHeight(_ solana.Commitment) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := uint64(0); i < l.advanceOnRead; i++ {
		l.newBlock()
	}
	return l.blockHeight, nil
}

func (l *Ledger) GetLatestBlockhash(_ solana.Commitment) (solana.RecentBlockhash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return solana.RecentBlockhash{
		Blockhash:            l.blockhash,
		LastValidBlockHeight: l.lastValid[l.blockhash],
	}, nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return rentExemptMinimum(size), nil
}

func (l *Ledger) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := l.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}
	if statuses[0] == nil {
		return nil, solana.ErrSignatureNotFound
	}
	return statuses[0], nil
}

func (l *Ledger) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if status, ok := l.statuses[sig]; ok {
			cloned := *status
			statuses[i] = &cloned
		}
	}
	return statuses, nil
}

func (l *Ledger) GetSlot(_ solana.Commitment) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.slot, nil
}

func (l *Ledger) GetTokenAccountBalance(address ed25519.PublicKey) (uint64, uint64, error) {
	account, ok := l.GetAccount(address)
	if !ok {
		return 0, 0, solana.ErrNoBalance
	}

	var tokenAccount token.Account
	if !bytes.Equal(account.Owner, token.ProgramKey) || !tokenAccount.Unmarshal(account.Data) {
		return 0, 0, solana.ErrNoBalance
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return tokenAccount.Amount, l.slot, nil
}

func (l *Ledger) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sig solana.Signature
	if len(txn.Signatures) > 0 {
		sig = txn.Signatures[0]
	}

	log := l.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
	})

	l.submissions++

	switch l.submitMode {
	case SubmitModeUnreachable:
		log.Debug("simulating unreachable node")
		return sig, ErrUnreachable
	case SubmitModeDrop:
		log.Debug("dropping transaction")
		return sig, nil
	}

	txErr := l.process(txn)
	if txErr == nil {
		log.Debug("transaction processed")
		return sig, nil
	}

	log.WithField("error_key", txErr.ErrorKey()).Debug("transaction failed")
	return sig, txErr
}

// process executes the transaction. Only errors from instruction execution can
// land on the ledger, and only with preflight disabled.
func (l *Ledger) process(txn solana.Transaction) *solana.TransactionError {
	m := txn.Message

	if err := sanitize(txn); err != nil {
		l.log.WithError(err).Debug("transaction failed sanitization")
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	lastValid, ok := l.lastValid[m.RecentBlockhash]
	if !ok || l.blockHeight > lastValid {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	if _, ok := l.statuses[txn.Signatures[0]]; ok {
		return solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	message := m.Marshal()
	for i, sig := range txn.Signatures {
		if !ed25519.Verify(m.Accounts[i], message, sig[:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	keys, writable, txErr := l.loadAccounts(m)
	if txErr != nil {
		return txErr
	}

	signers := make(map[string]bool)
	for i := 0; i < int(m.Header.NumSignatures); i++ {
		signers[string(m.Accounts[i])] = true
	}

	payer := l.accounts[string(m.Accounts[0])]
	fee := LamportsPerSignature * uint64(len(txn.Signatures))
	if payer == nil || payer.Lamports < fee {
		return solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	instructions := make([]solana.Instruction, len(m.Instructions))
	for i, compiled := range m.Instructions {
		ixn := solana.Instruction{
			Program: keys[compiled.ProgramIndex],
			Data:    compiled.Data,
		}
		for _, index := range compiled.Accounts {
			key := keys[index]
			ixn.Accounts = append(ixn.Accounts, solana.AccountMeta{
				PublicKey:  key,
				IsSigner:   signers[string(key)],
				IsWritable: writable[string(key)],
			})
		}
		instructions[i] = ixn
	}

	env := newEnv(l, instructions, writable, signers)

	charged := payer.clone()
	charged.Lamports -= fee
	env.overlay[string(m.Accounts[0])] = charged

	for i, ixn := range instructions {
		env.index = i

		err := l.execute(env, i, ixn)
		if err == nil {
			continue
		}

		txErr := solana.TransactionErrorFromInstructionError(toInstructionError(i, err))

		if l.preflight {
			return txErr
		}

		payer.Lamports -= fee
		l.record(txn.Signatures[0], txErr)
		return nil
	}

	for key, account := range env.overlay {
		if account == nil {
			delete(l.accounts, key)
			continue
		}
		l.accounts[key] = account
	}
	l.record(txn.Signatures[0], nil)

	return nil
}

func (l *Ledger) execute(env *Env, index int, ixn solana.Instruction) error {
	if l.hook != nil {
		if err := l.hook(index, ixn); err != nil {
			return err
		}
	}

	program, ok := l.programs[string(ixn.Program)]
	if !ok {
		return InstructionError(solana.InstructionErrorUnsupportedProgramID)
	}

	return program.Execute(env, &Invocation{
		Program:  ixn.Program,
		Accounts: ixn.Accounts,
		Data:     ixn.Data,
	})
}

// loadAccounts expands the message's index space with accounts loaded from
// lookup tables. Static accounts come first, followed by every table's
// writable loads and then every table's readonly loads.
func (l *Ledger) loadAccounts(m solana.Message) ([]ed25519.PublicKey, map[string]bool, *solana.TransactionError) {
	keys := append([]ed25519.PublicKey{}, m.Accounts...)

	writable := make(map[string]bool)
	for i, key := range m.Accounts {
		if m.IsWritable(i) {
			writable[string(key)] = true
		}
	}

	tables := make([]*address_lookup_table.AddressLookupTableAccount, len(m.AddressTableLookups))
	for i, lookup := range m.AddressTableLookups {
		account, ok := l.accounts[string(lookup.PublicKey)]
		if !ok || !bytes.Equal(account.Owner, address_lookup_table.ProgramKey) {
			return nil, nil, solana.NewTransactionError(solana.TransactionErrorAddressLookupTableNotFound)
		}

		var table address_lookup_table.AddressLookupTableAccount
		if err := table.Unmarshal(account.Data); err != nil || !table.IsActive() {
			return nil, nil, solana.NewTransactionError(solana.TransactionErrorAddressLookupTableNotFound)
		}
		tables[i] = &table
	}

	for i, lookup := range m.AddressTableLookups {
		for _, index := range lookup.WritableIndexes {
			if int(index) >= len(tables[i].Addresses) {
				return nil, nil, solana.NewTransactionError(solana.TransactionErrorInvalidAddressLookupTableIndex)
			}
			key := tables[i].Addresses[index]
			keys = append(keys, key)
			writable[string(key)] = true
		}
	}
	for i, lookup := range m.AddressTableLookups {
		for _, index := range lookup.ReadonlyIndexes {
			if int(index) >= len(tables[i].Addresses) {
				return nil, nil, solana.NewTransactionError(solana.TransactionErrorInvalidAddressLookupTableIndex)
			}
			keys = append(keys, tables[i].Addresses[index])
		}
	}

	return keys, writable, nil
}

func (l *Ledger) record(sig solana.Signature, txErr *solana.TransactionError) {
	l.statuses[sig] = &solana.SignatureStatus{
		Slot:               l.slot,
		ErrorResult:        txErr,
		ConfirmationStatus: "finalized",
	}
	l.newBlock()
}

func (l *Ledger) newBlock() {
	l.slot++
	l.blockHeight++

	var height [8]byte
	binary.LittleEndian.PutUint64(height[:], l.blockHeight)
	l.blockhash = sha256.Sum256(height[:])
	l.lastValid[l.blockhash] = l.blockHeight + MaxProcessingAge

	l.log.WithFields(logrus.Fields{
		"slot":      l.slot,
		"height":    l.blockHeight,
		"blockhash": base58.Encode(l.blockhash[:]),
	}).Trace("new block")
}

func sanitize(txn solana.Transaction) error {
	m := txn.Message

	if len(txn.Signatures) == 0 {
		return errors.New("no signatures")
	}
	if len(txn.Signatures) != int(m.Header.NumSignatures) {
		return errors.Errorf("signature count mismatch: %d != %d", len(txn.Signatures), m.Header.NumSignatures)
	}
	if len(m.Accounts) < int(m.Header.NumSignatures) {
		return errors.New("fewer accounts than signatures")
	}

	indexSpace := len(m.Accounts)
	for _, lookup := range m.AddressTableLookups {
		indexSpace += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	for i, ixn := range m.Instructions {
		if int(ixn.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d: program index out of range", i)
		}
		for _, index := range ixn.Accounts {
			if int(index) >= indexSpace {
				return errors.Errorf("instruction %d: account index out of range", i)
			}
		}
	}

	return nil
}

func toInstructionError(index int, err error) *solana.InstructionError {
	var custom solana.CustomError
	if errors.As(err, &custom) {
		return &solana.InstructionError{Index: index, Err: custom}
	}

	var named InstructionError
	if errors.As(err, &named) {
		return &solana.InstructionError{Index: index, Err: errors.New(string(named))}
	}

	if err == errInsufficientLamports {
		return &solana.InstructionError{Index: index, Err: errors.New(string(solana.InstructionErrorInsufficientFunds))}
	}

	return &solana.InstructionError{Index: index, Err: errors.New(string(solana.InstructionErrorGenericError))}
}
