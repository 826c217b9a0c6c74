package vault

import (
	"context"
	"errors"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
)

var (
	ErrNotFound     = errors.New("vault not found")
	ErrStaleVersion = errors.New("vault version is stale")
)

type Store interface {
	// Save creates or updates a vault record. Records are keyed by owner.
	Save(ctx context.Context, record *Record) error

	// GetByOwner gets a vault by its owner's wallet address
	GetByOwner(ctx context.Context, owner string) (*Record, error)

	// GetByVault gets a vault by its program address
	GetByVault(ctx context.Context, vault string) (*Record, error)

	// GetAllByState gets all vaults in a state
	GetAllByState(ctx context.Context, state lifecycle.State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// CountByState returns the count of vaults in a state
	CountByState(ctx context.Context, state lifecycle.State) (uint64, error)
}
