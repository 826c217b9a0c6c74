package address_lookup_table

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/binary"
)

// AddressLookupTab1e1111111111111111111111111
var ProgramKey = ed25519.PublicKey{2, 119, 166, 175, 151, 51, 155, 122, 200, 141, 24, 146, 201, 4, 70, 245, 0, 2, 48, 146, 102, 246, 46, 83, 193, 24, 36, 73, 130, 0, 0, 0}

var (
	ErrInvalidAccountSize = errors.New("invalid address lookup table account size")
	ErrInvalidAccountType = errors.New("invalid account type")
)

const (
	// tableAccountType distinguishes an initialized table from an
	// uninitialized account owned by the program.
	tableAccountType = 1

	metadataSize = 56
	maxAddresses = 256

	optionSize = 1
)

// Reference: https://github.com/solana-program/address-lookup-table/blob/main/program/src/state.rs
type AddressLookupTableAccount struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	Authority                  ed25519.PublicKey
	Addresses                  []ed25519.PublicKey
}

// IsActive reports whether the table has not been deactivated.
func (obj *AddressLookupTableAccount) IsActive() bool {
	return obj.DeactivationSlot == math.MaxUint64
}

// ToAddressLookupTable pairs the table's addresses with its own address for
// transaction compilation.
func (obj *AddressLookupTableAccount) ToAddressLookupTable(address ed25519.PublicKey) solana.AddressLookupTable {
	return solana.AddressLookupTable{
		PublicKey: address,
		Addresses: obj.Addresses,
	}
}

func (obj *AddressLookupTableAccount) Marshal() []byte {
	data := make([]byte, metadataSize+len(obj.Addresses)*ed25519.PublicKeySize)

	var offset int
	binary.PutUint32(data[offset:], tableAccountType, &offset)
	binary.PutUint64(data[offset:], obj.DeactivationSlot, &offset)
	binary.PutUint64(data[offset:], obj.LastExtendedSlot, &offset)
	binary.PutUint8(data[offset:], obj.LastExtendedSlotStartIndex, &offset)
	binary.PutOptionalKey32(data[offset:], obj.Authority, &offset, optionSize)

	for i, address := range obj.Addresses {
		copy(data[metadataSize+i*ed25519.PublicKeySize:], address)
	}
	return data
}

func (obj *AddressLookupTableAccount) Unmarshal(data []byte) error {
	if len(data) < metadataSize {
		return ErrInvalidAccountSize
	}

	addresses := data[metadataSize:]
	if len(addresses)%ed25519.PublicKeySize != 0 || len(addresses)/ed25519.PublicKeySize > maxAddresses {
		return ErrInvalidAccountSize
	}

	var offset int
	var accountType uint32
	binary.GetUint32(data, &accountType, &offset)
	if accountType != tableAccountType {
		return ErrInvalidAccountType
	}

	binary.GetUint64(data[offset:], &obj.DeactivationSlot, &offset)
	binary.GetUint64(data[offset:], &obj.LastExtendedSlot, &offset)
	binary.GetUint8(data[offset:], &obj.LastExtendedSlotStartIndex, &offset)
	binary.GetOptionalKey32(data[offset:], &obj.Authority, &offset, optionSize)

	obj.Addresses = make([]ed25519.PublicKey, 0, len(addresses)/ed25519.PublicKeySize)
	for len(addresses) > 0 {
		address := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(address, addresses)
		obj.Addresses = append(obj.Addresses, address)
		addresses = addresses[ed25519.PublicKeySize:]
	}
	return nil
}

func (obj *AddressLookupTableAccount) String() string {
	addresses := make([]string, len(obj.Addresses))
	for i, address := range obj.Addresses {
		addresses[i] = base58.Encode(address)
	}

	return fmt.Sprintf(
		"AddressLookupTable{deactivation_slot=%d,last_extended_slot=%d,last_extended_slot_start_index=%d,authority=%s,addresses=[%s]}",
		obj.DeactivationSlot,
		obj.LastExtendedSlot,
		obj.LastExtendedSlotStartIndex,
		base58.Encode(obj.Authority),
		strings.Join(addresses, ","),
	)
}
