package address_lookup_table

import (
	"crypto/ed25519"
	"math"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressLookupTableAccount_RoundTrip(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	expected := &AddressLookupTableAccount{
		DeactivationSlot: math.MaxUint64,
		LastExtendedSlot: 1234,
		Authority:        authority,
	}
	for i := 0; i < 5; i++ {
		address, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		expected.Addresses = append(expected.Addresses, address)
	}

	var actual AddressLookupTableAccount
	require.NoError(t, actual.Unmarshal(expected.Marshal()))
	assert.Equal(t, expected, &actual)
	assert.True(t, actual.IsActive())

	table := actual.ToAddressLookupTable(authority)
	assert.EqualValues(t, authority, table.PublicKey)
	assert.Len(t, table.Addresses, 5)
}

func TestAddressLookupTableAccount_Invalid(t *testing.T) {
	var account AddressLookupTableAccount
	assert.Equal(t, ErrInvalidAccountSize, account.Unmarshal(make([]byte, metadataSize-1)))
	assert.Equal(t, ErrInvalidAccountType, account.Unmarshal(make([]byte, metadataSize)))

	valid := (&AddressLookupTableAccount{}).Marshal()
	assert.Equal(t, ErrInvalidAccountSize, account.Unmarshal(append(valid, 1)))
}

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "AddressLookupTab1e1111111111111111111111111", base58.Encode(ProgramKey))
}
