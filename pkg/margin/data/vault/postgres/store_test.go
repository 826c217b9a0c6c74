package postgres

import (
	"database/sql"
	"testing"

	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/data/vault/tests"

	postgrestest "github.com/code-payments/vault-server/pkg/database/postgres/test"
)

var schema = postgrestest.Schema{
	Create: `
		CREATE TABLE margin__core_vault(
			id SERIAL NOT NULL PRIMARY KEY,

			owner TEXT NOT NULL UNIQUE,

			vault TEXT NOT NULL UNIQUE,
			vault_bump INTEGER NOT NULL,

			vault_usdc TEXT NOT NULL UNIQUE,
			vault_usdc_bump INTEGER NOT NULL,

			drift_user TEXT NOT NULL UNIQUE,
			drift_user_stats TEXT NOT NULL UNIQUE,

			stake_account TEXT NULL,

			state INTEGER NOT NULL,

			version INTEGER NOT NULL,

			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
	`,
	Drop: `DROP TABLE margin__core_vault;`,
}

var (
	testStore vault.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	postgrestest.Run(m, schema, func(db *sql.DB, reset func()) {
		testStore = New(db)
		teardown = reset
	})
}

func TestVaultPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}
