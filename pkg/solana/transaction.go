package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrSignerNotInAccountList = errors.New("signer is not in the account list")
	ErrSignerNotRequired      = errors.New("account is not a required signer")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type Message struct {
	version             MessageVersion
	Header              Header
	Accounts            []ed25519.PublicKey
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles a legacy transaction with the payer as the first
// signer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	return compile(payer, nil, instructions)
}

// NewVersionedTransaction compiles a transaction that may load non-signer
// accounts from the provided address lookup tables. The v0 format is only used
// when at least one account is loaded from a table.
func NewVersionedTransaction(payer ed25519.PublicKey, addressLookupTables []AddressLookupTable, instructions []Instruction) Transaction {
	return compile(payer, addressLookupTables, instructions)
}

type tableLoad struct {
	writable []byte
	readonly []byte
}

func compile(payer ed25519.PublicKey, addressLookupTables []AddressLookupTable, instructions []Instruction) Transaction {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}
	for _, ixn := range instructions {
		accounts = append(accounts, AccountMeta{PublicKey: ixn.Program, isProgram: true})
		accounts = append(accounts, ixn.Accounts...)
	}

	accounts = filterUnique(accounts)
	sort.Sort(SortableAccountMeta(accounts))

	tables := make([]AddressLookupTable, len(addressLookupTables))
	copy(tables, addressLookupTables)
	SortAddressLookupTables(tables)

	loads := make([]tableLoad, len(tables))

	var m Message
	for _, account := range accounts {
		if tableIndex, addressIndex, ok := findInLookupTables(tables, account); ok {
			if account.IsWritable {
				loads[tableIndex].writable = append(loads[tableIndex].writable, byte(addressIndex))
			} else {
				loads[tableIndex].readonly = append(loads[tableIndex].readonly, byte(addressIndex))
			}
			continue
		}

		m.Accounts = append(m.Accounts, account.PublicKey)

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	// Index space is static accounts, then every table's writable loads, then
	// every table's readonly loads.
	indexSpace := append([]ed25519.PublicKey{}, m.Accounts...)
	for i, load := range loads {
		for _, index := range load.writable {
			indexSpace = append(indexSpace, tables[i].Addresses[index])
		}
	}
	for i, load := range loads {
		for _, index := range load.readonly {
			indexSpace = append(indexSpace, tables[i].Addresses[index])
		}
	}

	for _, ixn := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: byte(indexOf(indexSpace, ixn.Program)),
			Data:         ixn.Data,
		}
		for _, account := range ixn.Accounts {
			compiled.Accounts = append(compiled.Accounts, byte(indexOf(indexSpace, account.PublicKey)))
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	for i, load := range loads {
		if len(load.writable) == 0 && len(load.readonly) == 0 {
			continue
		}

		m.AddressTableLookups = append(m.AddressTableLookups, MessageAddressTableLookup{
			PublicKey:       tables[i].PublicKey,
			WritableIndexes: load.writable,
			ReadonlyIndexes: load.readonly,
		})
	}
	if len(m.AddressTableLookups) > 0 {
		m.version = MessageVersion0
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// findInLookupTables returns the first table and index containing the account,
// provided the account is eligible for dynamic loading (not the payer, a signer
// or a program).
func findInLookupTables(tables []AddressLookupTable, account AccountMeta) (int, int, bool) {
	if account.isPayer || account.IsSigner || account.isProgram {
		return 0, 0, false
	}

	for i, table := range tables {
		if j := table.IndexOf(account.PublicKey); j >= 0 {
			return i, j, true
		}
	}
	return 0, 0, false
}

// Version returns the message format the transaction was compiled into.
func (m Message) Version() MessageVersion {
	return m.version
}

// IsSigner reports whether the static account at index must sign.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the static account at index is writable.
func (m Message) IsWritable(index int) bool {
	numSigners := int(m.Header.NumSignatures)
	if index < numSigners {
		return index < numSigners-int(m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each provided key. Every key must belong to a
// required signer.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		var sig Signature
		copy(sig[:], ed25519.Sign(signer, message))
		if err := t.AddSignature(pub, sig); err != nil {
			return err
		}
	}

	return nil
}

// AddSignature places an externally produced signature (for example, from a
// wallet) in the slot belonging to pub.
func (t *Transaction) AddSignature(pub ed25519.PublicKey, sig Signature) error {
	index := indexOf(t.Message.Accounts, pub)
	if index < 0 {
		return errors.Wrap(ErrSignerNotInAccountList, base58.Encode(pub))
	}
	if index >= len(t.Signatures) {
		return errors.Wrap(ErrSignerNotRequired, base58.Encode(pub))
	}

	t.Signatures[index] = sig
	return nil
}

// MissingSigners returns the required signers whose signature slot is empty.
func (t *Transaction) MissingSigners() []ed25519.PublicKey {
	var missing []ed25519.PublicKey
	for i, sig := range t.Signatures {
		if sig == (Signature{}) {
			missing = append(missing, t.Message.Accounts[i])
		}
	}
	return missing
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, s.String()))
	}
	sb.WriteString("Message:\n")
	sb.WriteString(fmt.Sprintf("  Version: %s\n", t.Message.version.String()))
	sb.WriteString(fmt.Sprintf("  Header: %d/%d/%d\n", t.Message.Header.NumSignatures, t.Message.Header.NumReadonlySigned, t.Message.Header.NumReadOnly))
	sb.WriteString(fmt.Sprintf("  Blockhash: %s\n", t.Message.RecentBlockhash.String()))
	sb.WriteString("  Static Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i, ixn := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d: program=%d accounts=%v data=%x\n", i, ixn.ProgramIndex, ixn.Accounts, ixn.Data))
	}
	for _, lookup := range t.Message.AddressTableLookups {
		sb.WriteString(fmt.Sprintf("  Lookup %s: writable=%v readonly=%v\n", base58.Encode(lookup.PublicKey), lookup.WritableIndexes, lookup.ReadonlyIndexes))
	}
	return sb.String()
}

// filterUnique merges duplicate account references, promoting permissions so
// the merged entry carries the union of all uses.
func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for _, account := range accounts {
		existing := -1
		for j := range filtered {
			if bytes.Equal(account.PublicKey, filtered[j].PublicKey) {
				existing = j
				break
			}
		}

		if existing < 0 {
			filtered = append(filtered, account)
			continue
		}

		filtered[existing].IsSigner = filtered[existing].IsSigner || account.IsSigner
		filtered[existing].IsWritable = filtered[existing].IsWritable || account.IsWritable
		filtered[existing].isPayer = filtered[existing].isPayer || account.isPayer
		filtered[existing].isProgram = filtered[existing].isProgram || account.isProgram
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}
