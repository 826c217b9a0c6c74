package transaction

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/memory"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/testutil"
)

func TestLookupTableResolver(t *testing.T) {
	ledger := memory.NewLedger()
	resolver := NewLookupTableResolver(ledger, solana.CommitmentFinalized, 100)

	tables := testutil.GenerateSolanaKeys(t, 2)
	entries := testutil.GenerateSolanaKeys(t, 4)

	ledger.CreateAddressLookupTable(tables[0], entries[:2])
	ledger.CreateAddressLookupTable(tables[1], entries[2:])

	resolved, err := resolver.Resolve([]ed25519.PublicKey{tables[1], tables[0], tables[1]})
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	assert.True(t, bytes.Compare(resolved[0].PublicKey, resolved[1].PublicKey) < 0)
	for _, table := range resolved {
		if bytes.Equal(table.PublicKey, tables[0]) {
			assert.Equal(t, entries[:2], table.Addresses)
		} else {
			assert.Equal(t, entries[2:], table.Addresses)
		}
	}

	// Cached tables aren't reloaded from chain
	ledger.CreateAddressLookupTable(tables[0], entries)
	resolved, err = resolver.Resolve([]ed25519.PublicKey{tables[0]})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Len(t, resolved[0].Addresses, 2)
}

func TestLookupTableResolver_Invalid(t *testing.T) {
	ledger := memory.NewLedger()
	resolver := NewLookupTableResolver(ledger, solana.CommitmentFinalized, 100)

	keys := testutil.GenerateSolanaKeys(t, 2)

	_, err := resolver.Resolve([]ed25519.PublicKey{keys[0]})
	assert.ErrorIs(t, err, solana.ErrNoAccountInfo)

	ledger.SetAccount(keys[1], &memory.Account{
		Lamports: 1,
		Owner:    system.ProgramKey[:],
		Data:     make([]byte, 56),
	})
	_, err = resolver.Resolve([]ed25519.PublicKey{keys[1]})
	assert.Error(t, err)

	resolved, err := resolver.Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}
