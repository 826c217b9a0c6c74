package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/vault-server/pkg/database/postgres"
	q "github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

const (
	tableName = "margin__core_intent"

	allColumns = `id, intent_id, owner, vault, operation, market_index, amount, is_all, signature, last_valid_block_height, state, error_class, error_message, version, created_at`
)

type model struct {
	Id                   sql.NullInt64  `db:"id"`
	IntentId             string         `db:"intent_id"`
	Owner                string         `db:"owner"`
	Vault                string         `db:"vault"`
	Operation            uint8          `db:"operation"`
	MarketIndex          uint16         `db:"market_index"`
	Amount               uint64         `db:"amount"`
	IsAll                bool           `db:"is_all"`
	Signature            sql.NullString `db:"signature"`
	LastValidBlockHeight uint64         `db:"last_valid_block_height"`
	State                uint8          `db:"state"`
	ErrorClass           sql.NullString `db:"error_class"`
	ErrorMessage         sql.NullString `db:"error_message"`
	Version              uint64         `db:"version"`
	CreatedAt            time.Time      `db:"created_at"`
}

func toModel(obj *intent.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}

	return &model{
		Id:                   sql.NullInt64{Int64: int64(obj.Id), Valid: true},
		IntentId:             obj.IntentId,
		Owner:                obj.Owner,
		Vault:                obj.Vault,
		Operation:            uint8(obj.Operation),
		MarketIndex:          obj.MarketIndex,
		Amount:               obj.Amount,
		IsAll:                obj.IsAll,
		Signature:            toNullString(obj.Signature),
		LastValidBlockHeight: obj.LastValidBlockHeight,
		State:                uint8(obj.State),
		ErrorClass:           toNullString(obj.ErrorClass),
		ErrorMessage:         toNullString(obj.ErrorMessage),
		Version:              obj.Version,
		CreatedAt:            obj.CreatedAt,
	}, nil
}

func fromModel(m *model) *intent.Record {
	return &intent.Record{
		Id:                   uint64(m.Id.Int64),
		IntentId:             m.IntentId,
		Owner:                m.Owner,
		Vault:                m.Vault,
		Operation:            lifecycle.Operation(m.Operation),
		MarketIndex:          m.MarketIndex,
		Amount:               m.Amount,
		IsAll:                m.IsAll,
		Signature:            pointer.StringIfValid(m.Signature.Valid, m.Signature.String),
		LastValidBlockHeight: m.LastValidBlockHeight,
		State:                intent.State(m.State),
		ErrorClass:           pointer.StringIfValid(m.ErrorClass.Valid, m.ErrorClass.String),
		ErrorMessage:         pointer.StringIfValid(m.ErrorMessage.Valid, m.ErrorMessage.String),
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
	}
}

func toNullString(value *string) sql.NullString {
	return sql.NullString{String: *pointer.StringOrDefault(value, ""), Valid: value != nil}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(intent_id, owner, vault, operation, market_index, amount, is_all, signature, last_valid_block_height, state, error_class, error_message, version, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13 + 1, $14)

			ON CONFLICT (intent_id)
			DO UPDATE
				SET signature = $8, last_valid_block_height = $9, state = $10, error_class = $11, error_message = $12, version = ` + tableName + `.version + 1
				WHERE ` + tableName + `.intent_id = $1 AND ` + tableName + `.version = $13

			RETURNING ` + allColumns

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.IntentId,
			m.Owner,
			m.Vault,
			m.Operation,
			m.MarketIndex,
			m.Amount,
			m.IsAll,
			m.Signature,
			m.LastValidBlockHeight,
			m.State,
			m.ErrorClass,
			m.ErrorMessage,
			m.Version,
			m.CreatedAt,
		).StructScan(m)
		if err != nil {
			return pgutil.CheckNoRows(err, intent.ErrStaleVersion)
		}
		return nil
	})
}

func dbGetById(ctx context.Context, db *sqlx.DB, id string) (*model, error) {
	return dbGetOneBy(ctx, db, "intent_id", id)
}

func dbGetBySignature(ctx context.Context, db *sqlx.DB, signature string) (*model, error) {
	return dbGetOneBy(ctx, db, "signature", signature)
}

// column is always one of the indexed columns named above, never caller input.
func dbGetOneBy(ctx context.Context, db *sqlx.DB, column string, value interface{}) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE ` + column + ` = $1
		LIMIT 1`

	if err := db.GetContext(ctx, res, query, value); err != nil {
		return nil, pgutil.CheckNoRows(err, intent.ErrNotFound)
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	return dbPageBy(ctx, db, "owner", owner, cursor, limit, direction)
}

func dbGetAllByState(ctx context.Context, db *sqlx.DB, state intent.State, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	return dbPageBy(ctx, db, "state", state, cursor, limit, direction)
}

func dbPageBy(ctx context.Context, db *sqlx.DB, column string, value interface{}, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	var res []*model

	query, opts := q.PaginateQuery(
		`SELECT `+allColumns+` FROM `+tableName+` WHERE `+column+` = $1`,
		[]interface{}{value},
		cursor, limit, direction,
	)

	if err := db.SelectContext(ctx, &res, query, opts...); err != nil {
		return nil, pgutil.CheckNoRows(err, intent.ErrNotFound)
	}
	if len(res) == 0 {
		return nil, intent.ErrNotFound
	}
	return res, nil
}

func dbGetAllByOwnerAndState(ctx context.Context, db *sqlx.DB, owner string, state intent.State) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE owner = $1 AND state = $2
		ORDER BY id ASC`

	err := db.SelectContext(ctx, &res, query, owner, state)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, intent.ErrNotFound)
	}

	if len(res) == 0 {
		return nil, intent.ErrNotFound
	}
	return res, nil
}

func dbCountByState(ctx context.Context, db *sqlx.DB, state intent.State) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE state = $1
	`

	err := db.GetContext(ctx, &res, query, state)
	if err != nil {
		return 0, err
	}
	return res, nil
}
