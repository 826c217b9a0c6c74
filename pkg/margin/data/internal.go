package data

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/vault-server/pkg/cache"
	pg "github.com/code-payments/vault-server/pkg/database/postgres"
	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"

	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"

	intent_memory_client "github.com/code-payments/vault-server/pkg/margin/data/intent/memory"
	vault_memory_client "github.com/code-payments/vault-server/pkg/margin/data/vault/memory"

	intent_postgres_client "github.com/code-payments/vault-server/pkg/margin/data/intent/postgres"
	vault_postgres_client "github.com/code-payments/vault-server/pkg/margin/data/vault/postgres"
)

// Cache Constants
const (
	maxVaultCacheBudget = 100000
	vaultCacheTTL       = 5 * time.Second
)

// vaultCacheEntry holds a private copy of a vault record, refreshed from the
// store once it's older than vaultCacheTTL.
type vaultCacheEntry struct {
	mu            sync.RWMutex
	record        *vault.Record
	lastUpdatedAt time.Time
}

// get returns a copy of the cached record if it's still fresh. Callers hold mu.
func (e *vaultCacheEntry) get() (*vault.Record, bool) {
	if e.record == nil || time.Since(e.lastUpdatedAt) >= vaultCacheTTL {
		return nil, false
	}
	cloned := e.record.Clone()
	return &cloned, true
}

// set stores a copy of record. Callers hold mu for writing.
func (e *vaultCacheEntry) set(record *vault.Record) {
	cloned := record.Clone()
	e.record = &cloned
	e.lastUpdatedAt = time.Now()
}

type DatabaseData interface {
	// Vault
	// --------------------------------------------------------------------------------
	SaveVault(ctx context.Context, record *vault.Record) error
	GetVaultByOwner(ctx context.Context, owner string) (*vault.Record, error)
	GetVaultByAddress(ctx context.Context, address string) (*vault.Record, error)
	GetAllVaultsByState(ctx context.Context, state lifecycle.State, opts ...query.Option) ([]*vault.Record, error)
	GetVaultCountByState(ctx context.Context, state lifecycle.State) (uint64, error)

	// Intent
	// --------------------------------------------------------------------------------
	SaveIntent(ctx context.Context, record *intent.Record) error
	GetIntent(ctx context.Context, intentId string) (*intent.Record, error)
	GetIntentBySignature(ctx context.Context, signature string) (*intent.Record, error)
	GetAllIntentsByOwner(ctx context.Context, owner string, opts ...query.Option) ([]*intent.Record, error)
	GetAllIntentsByState(ctx context.Context, state intent.State, opts ...query.Option) ([]*intent.Record, error)
	GetAllIntentsByOwnerAndState(ctx context.Context, owner string, state intent.State) ([]*intent.Record, error)
	GetIntentCountByState(ctx context.Context, state intent.State) (uint64, error)

	// ExecuteInTx runs fn inside one DB transaction carried on ctx. Store calls
	// made with that ctx join the transaction.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	vaults  vault.Store
	intents intent.Store

	vaultCache *cache.Cache[string, *vaultCacheEntry]

	db *sqlx.DB
}

func NewDatabaseProvider(ctx context.Context, dbConfig *pg.Config) (DatabaseData, error) {
	db, err := pg.Open(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	return &DatabaseProvider{
		vaults:  vault_postgres_client.New(db),
		intents: intent_postgres_client.New(db),

		vaultCache: cache.New[string, *vaultCacheEntry](maxVaultCacheBudget),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		vaults:  vault_memory_client.New(),
		intents: intent_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Vault
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveVault(ctx context.Context, record *vault.Record) error {
	if err := dp.vaults.Save(ctx, record); err != nil || dp.vaultCache == nil {
		return err
	}

	if entry, ok := dp.vaultCache.Retrieve(record.Owner); ok {
		entry.mu.Lock()
		entry.set(record)
		entry.mu.Unlock()
	}
	return nil
}
func (dp *DatabaseProvider) GetVaultByOwner(ctx context.Context, owner string) (*vault.Record, error) {
	if dp.vaultCache == nil {
		return dp.vaults.GetByOwner(ctx, owner)
	}

	entry, ok := dp.vaultCache.Retrieve(owner)
	if !ok {
		record, err := dp.vaults.GetByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}

		entry = &vaultCacheEntry{}
		entry.set(record)
		dp.vaultCache.Insert(owner, entry, 1)
		return record, nil
	}

	entry.mu.RLock()
	record, fresh := entry.get()
	entry.mu.RUnlock()
	if fresh {
		return record, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Refreshed by a concurrent caller while waiting on the lock.
	if record, fresh := entry.get(); fresh {
		return record, nil
	}

	record, err := dp.vaults.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	entry.set(record)
	return record, nil
}
func (dp *DatabaseProvider) GetVaultByAddress(ctx context.Context, address string) (*vault.Record, error) {
	return dp.vaults.GetByVault(ctx, address)
}
func (dp *DatabaseProvider) GetAllVaultsByState(ctx context.Context, state lifecycle.State, opts ...query.Option) ([]*vault.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	return dp.vaults.GetAllByState(ctx, state, req.Cursor, req.Limit, req.SortBy)
}
func (dp *DatabaseProvider) GetVaultCountByState(ctx context.Context, state lifecycle.State) (uint64, error) {
	return dp.vaults.CountByState(ctx, state)
}

// Intent
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveIntent(ctx context.Context, record *intent.Record) error {
	return dp.intents.Save(ctx, record)
}
func (dp *DatabaseProvider) GetIntent(ctx context.Context, intentId string) (*intent.Record, error) {
	return dp.intents.GetById(ctx, intentId)
}
func (dp *DatabaseProvider) GetIntentBySignature(ctx context.Context, signature string) (*intent.Record, error) {
	return dp.intents.GetBySignature(ctx, signature)
}
func (dp *DatabaseProvider) GetAllIntentsByOwner(ctx context.Context, owner string, opts ...query.Option) ([]*intent.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	return dp.intents.GetAllByOwner(ctx, owner, req.Cursor, req.Limit, req.SortBy)
}
func (dp *DatabaseProvider) GetAllIntentsByState(ctx context.Context, state intent.State, opts ...query.Option) ([]*intent.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	return dp.intents.GetAllByState(ctx, state, req.Cursor, req.Limit, req.SortBy)
}
func (dp *DatabaseProvider) GetAllIntentsByOwnerAndState(ctx context.Context, owner string, state intent.State) ([]*intent.Record, error) {
	return dp.intents.GetAllByOwnerAndState(ctx, owner, state)
}
func (dp *DatabaseProvider) GetIntentCountByState(ctx context.Context, state intent.State) (uint64, error) {
	return dp.intents.CountByState(ctx, state)
}
