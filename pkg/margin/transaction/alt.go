package transaction

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/cache"
	"github.com/code-payments/vault-server/pkg/solana"
	address_lookup_table "github.com/code-payments/vault-server/pkg/solana/addresslookuptable"
)

var ErrLookupTableNotActive = errors.New("address lookup table is not active")

// LookupTableResolver loads address lookup tables from chain. Tables are
// cached by address, weighted by their number of entries.
//
// todo: Tables can be extended after they're cached. Jupiter's tables only
//       grow, so a cached prefix is still valid, but a route using a newer
//       entry would fail to compile until the entry is evicted.
type LookupTableResolver struct {
	client     solana.Client
	commitment solana.Commitment
	cache      *cache.Cache[string, solana.AddressLookupTable]
}

func NewLookupTableResolver(client solana.Client, commitment solana.Commitment, cacheBudget int) *LookupTableResolver {
	return &LookupTableResolver{
		client:     client,
		commitment: commitment,
		cache:      cache.New[string, solana.AddressLookupTable](cacheBudget),
	}
}

// Resolve returns the tables at the provided addresses, sorted by address.
func (r *LookupTableResolver) Resolve(addresses []ed25519.PublicKey) ([]solana.AddressLookupTable, error) {
	tables := make([]solana.AddressLookupTable, 0, len(addresses))
	seen := make(map[string]struct{})

	for _, address := range addresses {
		key := base58.Encode(address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if cached, ok := r.cache.Retrieve(key); ok {
			tables = append(tables, cached)
			continue
		}

		table, err := r.load(address)
		if err != nil {
			return nil, errors.Wrapf(err, "error loading address lookup table %s", key)
		}

		// Insert failures only mean the table isn't cached
		r.cache.Insert(key, table, len(table.Addresses)+1)

		tables = append(tables, table)
	}

	solana.SortAddressLookupTables(tables)
	return tables, nil
}

func (r *LookupTableResolver) load(address ed25519.PublicKey) (solana.AddressLookupTable, error) {
	info, err := r.client.GetAccountInfo(address, r.commitment)
	if err != nil {
		return solana.AddressLookupTable{}, err
	}

	if !bytes.Equal(info.Owner, address_lookup_table.ProgramKey) {
		return solana.AddressLookupTable{}, errors.New("account not owned by the address lookup table program")
	}

	var account address_lookup_table.AddressLookupTableAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return solana.AddressLookupTable{}, err
	}

	if !account.IsActive() {
		return solana.AddressLookupTable{}, ErrLookupTableNotActive
	}

	return account.ToAddressLookupTable(address), nil
}
