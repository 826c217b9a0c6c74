package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
)

type store struct {
	db *sqlx.DB
}

func New(db *sql.DB) vault.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements vault.Store.Save
func (s *store) Save(ctx context.Context, record *vault.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbSave(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetByOwner implements vault.Store.GetByOwner
func (s *store) GetByOwner(ctx context.Context, owner string) (*vault.Record, error) {
	obj, err := dbGetByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}
	return fromModel(obj), nil
}

// GetByVault implements vault.Store.GetByVault
func (s *store) GetByVault(ctx context.Context, address string) (*vault.Record, error) {
	obj, err := dbGetByVault(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(obj), nil
}

// GetAllByState implements vault.Store.GetAllByState
func (s *store) GetAllByState(ctx context.Context, state lifecycle.State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*vault.Record, error) {
	models, err := dbGetAllByState(ctx, s.db, state, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*vault.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// CountByState implements vault.Store.CountByState
func (s *store) CountByState(ctx context.Context, state lifecycle.State) (uint64, error) {
	return dbCountByState(ctx, s.db, state)
}
