package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressLookupTable_IndexOf(t *testing.T) {
	var keys []ed25519.PublicKey
	for _, key := range generateKeys(t, 3) {
		keys = append(keys, key.Public().(ed25519.PublicKey))
	}

	table := AddressLookupTable{
		PublicKey: keys[0],
		Addresses: []ed25519.PublicKey{keys[1], keys[2]},
	}
	assert.Equal(t, 0, table.IndexOf(keys[1]))
	assert.Equal(t, 1, table.IndexOf(keys[2]))
	assert.Equal(t, -1, table.IndexOf(keys[0]))
}

func TestSortAddressLookupTables(t *testing.T) {
	low := AddressLookupTable{PublicKey: make(ed25519.PublicKey, ed25519.PublicKeySize)}
	high := AddressLookupTable{PublicKey: make(ed25519.PublicKey, ed25519.PublicKeySize)}
	high.PublicKey[0] = 1

	tables := []AddressLookupTable{high, low}
	SortAddressLookupTables(tables)
	assert.Equal(t, []AddressLookupTable{low, high}, tables)
}
