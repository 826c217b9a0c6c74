package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

func RunTests(t *testing.T, s vault.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s vault.Store){
		testRoundTrip,
		testUpdateHappyPath,
		testUpdateStaleRecord,
		testInvalidRecord,
		testGetAllByState,
		testCountByState,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s vault.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		actual, err := s.GetByOwner(ctx, "test_owner")
		require.Error(t, err)
		assert.Equal(t, vault.ErrNotFound, err)
		assert.Nil(t, actual)

		actual, err = s.GetByVault(ctx, "test_vault")
		require.Error(t, err)
		assert.Equal(t, vault.ErrNotFound, err)
		assert.Nil(t, actual)

		expected := newTestRecord(0, lifecycle.StateActive)
		expected.StakeAccount = pointer.String("test_stake_account")
		cloned := expected.Clone()

		err = s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 1, expected.Version)
		assert.False(t, expected.UpdatedAt.IsZero())

		actual, err = s.GetByOwner(ctx, cloned.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		actual, err = s.GetByVault(ctx, cloned.Vault)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testUpdateHappyPath(t *testing.T, s vault.Store) {
	t.Run("testUpdateHappyPath", func(t *testing.T) {
		ctx := context.Background()

		expected := newTestRecord(0, lifecycle.StateRegistered)
		err := s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 1, expected.Version)
		assert.Nil(t, expected.StakeAccount)

		expected.State = lifecycle.StateActive
		expected.StakeAccount = pointer.String("test_stake_account")

		err = s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 2, expected.Version)

		actual, err := s.GetByOwner(ctx, expected.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, expected, actual)
		assert.EqualValues(t, 2, actual.Version)

		// Derived addresses never change once a vault is recorded
		expected.Vault = "test_other_vault"
		expected.State = lifecycle.StateClosed

		err = s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 3, expected.Version)

		actual, err = s.GetByOwner(ctx, expected.Owner)
		require.NoError(t, err)
		assert.Equal(t, "test_vault_0", actual.Vault)
		assert.Equal(t, lifecycle.StateClosed, actual.State)
	})
}

func testUpdateStaleRecord(t *testing.T, s vault.Store) {
	t.Run("testUpdateStaleRecord", func(t *testing.T) {
		ctx := context.Background()

		expected := newTestRecord(0, lifecycle.StateActive)
		err := s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Version)

		stale := expected.Clone()
		stale.State = lifecycle.StateClosed
		stale.Version -= 1

		err = s.Save(ctx, &stale)
		assert.Equal(t, vault.ErrStaleVersion, err)
		assert.EqualValues(t, 0, stale.Version)

		actual, err := s.GetByOwner(ctx, expected.Owner)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StateActive, actual.State)
		assert.EqualValues(t, 1, actual.Version)
	})
}

func testInvalidRecord(t *testing.T, s vault.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		for _, mutate := range []func(r *vault.Record){
			func(r *vault.Record) { r.Owner = "" },
			func(r *vault.Record) { r.Vault = "" },
			func(r *vault.Record) { r.VaultUsdc = "" },
			func(r *vault.Record) { r.DriftUser = "" },
			func(r *vault.Record) { r.DriftUserStats = "" },
			func(r *vault.Record) { r.StakeAccount = pointer.String("") },
			func(r *vault.Record) { r.State = lifecycle.StateUnknown },
		} {
			record := newTestRecord(0, lifecycle.StateActive)
			mutate(record)
			assert.Error(t, s.Save(ctx, record))
		}

		_, err := s.GetByOwner(ctx, "test_owner_0")
		assert.Equal(t, vault.ErrNotFound, err)
	})
}

func testGetAllByState(t *testing.T, s vault.Store) {
	t.Run("testGetAllByState", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByState(ctx, lifecycle.StateActive, query.EmptyCursor, 1, query.Ascending)
		assert.Equal(t, vault.ErrNotFound, err)

		var records []*vault.Record
		for i := range 100 {
			state := lifecycle.StateActive
			if i >= 50 {
				state = lifecycle.StateClosed
			}

			record := newTestRecord(i, state)
			require.NoError(t, s.Save(ctx, record))

			records = append(records, record)
		}

		allActual, err := s.GetAllByState(ctx, lifecycle.StateActive, query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, allActual, 50)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[i], actual)
		}

		allActual, err = s.GetAllByState(ctx, lifecycle.StateActive, query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, allActual, 10)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[50-i-1], actual)
		}

		allActual, err = s.GetAllByState(ctx, lifecycle.StateActive, query.ToCursor(records[23].Id), 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, allActual, 10)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[23+i+1], actual)
		}

		allActual, err = s.GetAllByState(ctx, lifecycle.StateActive, query.ToCursor(records[23].Id), 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, allActual, 10)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[23-i-1], actual)
		}

		_, err = s.GetAllByState(ctx, lifecycle.StateActive, query.ToCursor(records[50].Id), 10, query.Ascending)
		assert.Equal(t, vault.ErrNotFound, err)
	})
}

func testCountByState(t *testing.T, s vault.Store) {
	t.Run("testCountByState", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.CountByState(ctx, lifecycle.StateActive)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		for i := range 10 {
			state := lifecycle.StateActive
			if i%3 == 0 {
				state = lifecycle.StateClosing
			}
			require.NoError(t, s.Save(ctx, newTestRecord(i, state)))
		}

		count, err = s.CountByState(ctx, lifecycle.StateActive)
		require.NoError(t, err)
		assert.EqualValues(t, 6, count)

		count, err = s.CountByState(ctx, lifecycle.StateClosing)
		require.NoError(t, err)
		assert.EqualValues(t, 4, count)

		count, err = s.CountByState(ctx, lifecycle.StateClosed)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func newTestRecord(i int, state lifecycle.State) *vault.Record {
	return &vault.Record{
		Owner: fmt.Sprintf("test_owner_%d", i),

		Vault:     fmt.Sprintf("test_vault_%d", i),
		VaultBump: 255,

		VaultUsdc:     fmt.Sprintf("test_vault_usdc_%d", i),
		VaultUsdcBump: 254,

		DriftUser:      fmt.Sprintf("test_drift_user_%d", i),
		DriftUserStats: fmt.Sprintf("test_drift_user_stats_%d", i),

		State: state,

		CreatedAt: time.Now(),
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *vault.Record) {
	assert.Equal(t, obj1.Owner, obj2.Owner)

	assert.Equal(t, obj1.Vault, obj2.Vault)
	assert.Equal(t, obj1.VaultBump, obj2.VaultBump)

	assert.Equal(t, obj1.VaultUsdc, obj2.VaultUsdc)
	assert.Equal(t, obj1.VaultUsdcBump, obj2.VaultUsdcBump)

	assert.Equal(t, obj1.DriftUser, obj2.DriftUser)
	assert.Equal(t, obj1.DriftUserStats, obj2.DriftUserStats)

	assert.EqualValues(t, obj1.StakeAccount, obj2.StakeAccount)

	assert.Equal(t, obj1.State, obj2.State)

	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
}
