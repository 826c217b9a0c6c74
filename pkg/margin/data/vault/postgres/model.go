package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/vault-server/pkg/database/postgres"
	q "github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

const (
	tableName = "margin__core_vault"

	allColumns = `id, owner, vault, vault_bump, vault_usdc, vault_usdc_bump, drift_user, drift_user_stats, stake_account, state, version, created_at, updated_at`
)

type model struct {
	Id             sql.NullInt64  `db:"id"`
	Owner          string         `db:"owner"`
	Vault          string         `db:"vault"`
	VaultBump      uint8          `db:"vault_bump"`
	VaultUsdc      string         `db:"vault_usdc"`
	VaultUsdcBump  uint8          `db:"vault_usdc_bump"`
	DriftUser      string         `db:"drift_user"`
	DriftUserStats string         `db:"drift_user_stats"`
	StakeAccount   sql.NullString `db:"stake_account"`
	State          uint8          `db:"state"`
	Version        uint64         `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func toModel(obj *vault.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}

	return &model{
		Id:             sql.NullInt64{Int64: int64(obj.Id), Valid: true},
		Owner:          obj.Owner,
		Vault:          obj.Vault,
		VaultBump:      obj.VaultBump,
		VaultUsdc:      obj.VaultUsdc,
		VaultUsdcBump:  obj.VaultUsdcBump,
		DriftUser:      obj.DriftUser,
		DriftUserStats: obj.DriftUserStats,
		StakeAccount:   sql.NullString{String: *pointer.StringOrDefault(obj.StakeAccount, ""), Valid: obj.StakeAccount != nil},
		State:          uint8(obj.State),
		Version:        obj.Version,
		CreatedAt:      obj.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

func fromModel(m *model) *vault.Record {
	return &vault.Record{
		Id:             uint64(m.Id.Int64),
		Owner:          m.Owner,
		Vault:          m.Vault,
		VaultBump:      m.VaultBump,
		VaultUsdc:      m.VaultUsdc,
		VaultUsdcBump:  m.VaultUsdcBump,
		DriftUser:      m.DriftUser,
		DriftUserStats: m.DriftUserStats,
		StakeAccount:   pointer.StringIfValid(m.StakeAccount.Valid, m.StakeAccount.String),
		State:          lifecycle.State(m.State),
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(owner, vault, vault_bump, vault_usdc, vault_usdc_bump, drift_user, drift_user_stats, stake_account, state, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10 + 1, $11, $12)

			ON CONFLICT (owner)
			DO UPDATE
				SET stake_account = $8, state = $9, version = ` + tableName + `.version + 1, updated_at = $12
				WHERE ` + tableName + `.owner = $1 AND ` + tableName + `.version = $10

			RETURNING ` + allColumns

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Owner,
			m.Vault,
			m.VaultBump,
			m.VaultUsdc,
			m.VaultUsdcBump,
			m.DriftUser,
			m.DriftUserStats,
			m.StakeAccount,
			m.State,
			m.Version,
			m.CreatedAt,
			m.UpdatedAt,
		).StructScan(m)
		if err != nil {
			return pgutil.CheckNoRows(err, vault.ErrStaleVersion)
		}
		return nil
	})
}

func dbGetByOwner(ctx context.Context, db *sqlx.DB, owner string) (*model, error) {
	return dbGetOneBy(ctx, db, "owner", owner)
}

func dbGetByVault(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	return dbGetOneBy(ctx, db, "vault", address)
}

func dbGetOneBy(ctx context.Context, db *sqlx.DB, column, value string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE ` + column + ` = $1
		LIMIT 1`

	if err := db.GetContext(ctx, res, query, value); err != nil {
		return nil, pgutil.CheckNoRows(err, vault.ErrNotFound)
	}
	return res, nil
}

func dbGetAllByState(ctx context.Context, db *sqlx.DB, state lifecycle.State, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE state = $1`

	opts := []interface{}{state}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, vault.ErrNotFound)
	}

	if len(res) == 0 {
		return nil, vault.ErrNotFound
	}
	return res, nil
}

func dbCountByState(ctx context.Context, db *sqlx.DB, state lifecycle.State) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE state = $1
	`

	if err := db.GetContext(ctx, &res, query, state); err != nil {
		return 0, err
	}
	return res, nil
}
