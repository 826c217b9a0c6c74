package intent

import (
	"context"
	"errors"

	"github.com/code-payments/vault-server/pkg/database/query"
)

var (
	ErrNotFound     = errors.New("intent not found")
	ErrStaleVersion = errors.New("intent version is stale")
)

type Store interface {
	// Save creates or updates an intent
	Save(ctx context.Context, record *Record) error

	// GetById gets an intent by its ID
	GetById(ctx context.Context, id string) (*Record, error)

	// GetBySignature gets an intent by its transaction signature
	GetBySignature(ctx context.Context, signature string) (*Record, error)

	// GetAllByOwner gets all intents for an owner
	GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllByState gets a page of intents in a state across all owners
	GetAllByState(ctx context.Context, state State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllByOwnerAndState gets all intents for an owner in a state
	GetAllByOwnerAndState(ctx context.Context, owner string, state State) ([]*Record, error)

	// CountByState returns the count of intents in a state
	CountByState(ctx context.Context, state State) (uint64, error)
}
