package solana

import (
	"bytes"
	"crypto/ed25519"
	"sort"
)

// AddressLookupTable is the resolved content of an on-chain lookup table, as
// used when compiling a versioned message.
type AddressLookupTable struct {
	PublicKey ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

// IndexOf returns the position of address in the table, or -1.
func (t AddressLookupTable) IndexOf(address ed25519.PublicKey) int {
	return indexOf(t.Addresses, address)
}

// SortAddressLookupTables orders tables by address, which fixes the order of
// their lookups in a compiled message.
func SortAddressLookupTables(tables []AddressLookupTable) {
	sort.Slice(tables, func(i, j int) bool {
		return bytes.Compare(tables[i].PublicKey, tables[j].PublicKey) < 0
	})
}
