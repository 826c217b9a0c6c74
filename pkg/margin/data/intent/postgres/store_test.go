package postgres

import (
	"database/sql"
	"testing"

	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/margin/data/intent/tests"

	postgrestest "github.com/code-payments/vault-server/pkg/database/postgres/test"
)

var schema = postgrestest.Schema{
	Create: `
		CREATE TABLE margin__core_intent(
			id SERIAL NOT NULL PRIMARY KEY,

			intent_id TEXT NOT NULL UNIQUE,

			owner TEXT NOT NULL,
			vault TEXT NOT NULL,

			operation INTEGER NOT NULL,
			market_index INTEGER NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			is_all BOOL NOT NULL,

			signature TEXT NULL UNIQUE,
			last_valid_block_height BIGINT NOT NULL CHECK (last_valid_block_height >= 0),

			state INTEGER NOT NULL,

			error_class TEXT NULL,
			error_message TEXT NULL,

			version INTEGER NOT NULL,

			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
	`,
	Drop: `DROP TABLE margin__core_intent;`,
}

var (
	testStore intent.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	postgrestest.Run(m, schema, func(db *sql.DB, reset func()) {
		testStore = New(db)
		teardown = reset
	})
}

func TestIntentPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}
