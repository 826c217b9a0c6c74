package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
)

type store struct {
	db *sqlx.DB
}

func New(db *sql.DB) intent.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements intent.Store.Save
func (s *store) Save(ctx context.Context, record *intent.Record) error {
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

// GetById implements intent.Store.GetById
func (s *store) GetById(ctx context.Context, id string) (*intent.Record, error) {
	obj, err := dbGetById(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(obj), nil
}

// GetBySignature implements intent.Store.GetBySignature
func (s *store) GetBySignature(ctx context.Context, signature string) (*intent.Record, error) {
	obj, err := dbGetBySignature(ctx, s.db, signature)
	if err != nil {
		return nil, err
	}
	return fromModel(obj), nil
}

// GetAllByOwner implements intent.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*intent.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner, cursor, limit, direction)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// GetAllByState implements intent.Store.GetAllByState
func (s *store) GetAllByState(ctx context.Context, state intent.State, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*intent.Record, error) {
	models, err := dbGetAllByState(ctx, s.db, state, cursor, limit, direction)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// GetAllByOwnerAndState implements intent.Store.GetAllByOwnerAndState
func (s *store) GetAllByOwnerAndState(ctx context.Context, owner string, state intent.State) ([]*intent.Record, error) {
	models, err := dbGetAllByOwnerAndState(ctx, s.db, owner, state)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// CountByState implements intent.Store.CountByState
func (s *store) CountByState(ctx context.Context, state intent.State) (uint64, error) {
	return dbCountByState(ctx, s.db, state)
}

func fromModels(models []*model) []*intent.Record {
	res := make([]*intent.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res
}
