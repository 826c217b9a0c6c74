package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

func RunTests(t *testing.T, s intent.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s intent.Store){
		testRoundTrip,
		testUpdateHappyPath,
		testUpdateStaleRecord,
		testInvalidRecord,
		testGetAllByOwner,
		testGetAllByOwnerAndState,
		testGetAllByState,
		testCountByState,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s intent.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		actual, err := s.GetById(ctx, "test_intent_id_0")
		require.Error(t, err)
		assert.Equal(t, intent.ErrNotFound, err)
		assert.Nil(t, actual)

		actual, err = s.GetBySignature(ctx, "test_signature_0")
		require.Error(t, err)
		assert.Equal(t, intent.ErrNotFound, err)
		assert.Nil(t, actual)

		expected := newTestRecord(0, "test_owner", intent.StateRejected)
		expected.ErrorClass = pointer.String("state_precondition")
		expected.ErrorMessage = pointer.String("custom program error: 0x0")
		cloned := expected.Clone()

		err = s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 1, expected.Version)

		actual, err = s.GetById(ctx, "test_intent_id_0")
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		actual, err = s.GetBySignature(ctx, "test_signature_0")
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testUpdateHappyPath(t *testing.T, s intent.Store) {
	t.Run("testUpdateHappyPath", func(t *testing.T) {
		ctx := context.Background()

		expected := newTestRecord(0, "test_owner", intent.StateUnresolved)
		expected.ErrorClass = pointer.String("transient")
		expected.ErrorMessage = pointer.String("timed out waiting for confirmation")

		err := s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 1, expected.Version)

		expected.State = intent.StateConfirmed
		expected.ErrorClass = nil
		expected.ErrorMessage = nil

		err = s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Id)
		assert.EqualValues(t, 2, expected.Version)

		actual, err := s.GetById(ctx, expected.IntentId)
		require.NoError(t, err)
		assertEquivalentRecords(t, expected, actual)
		assert.Nil(t, actual.ErrorClass)
		assert.Nil(t, actual.ErrorMessage)
	})
}

func testUpdateStaleRecord(t *testing.T, s intent.Store) {
	t.Run("testUpdateStaleRecord", func(t *testing.T) {
		ctx := context.Background()

		expected := newTestRecord(0, "test_owner", intent.StateUnresolved)
		err := s.Save(ctx, expected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expected.Version)

		stale := expected.Clone()
		stale.State = intent.StateExpired
		stale.Version -= 1

		err = s.Save(ctx, &stale)
		assert.Equal(t, intent.ErrStaleVersion, err)
		assert.EqualValues(t, 0, stale.Version)

		actual, err := s.GetById(ctx, expected.IntentId)
		require.NoError(t, err)
		assert.Equal(t, intent.StateUnresolved, actual.State)
		assert.EqualValues(t, 1, actual.Version)
	})
}

func testInvalidRecord(t *testing.T, s intent.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		for _, mutate := range []func(r *intent.Record){
			func(r *intent.Record) { r.IntentId = "" },
			func(r *intent.Record) { r.Owner = "" },
			func(r *intent.Record) { r.Vault = "" },
			func(r *intent.Record) { r.Operation = lifecycle.OperationUnknown },
			func(r *intent.Record) { r.IsAll = true },
			func(r *intent.Record) { r.Signature = pointer.String("") },
			func(r *intent.Record) { r.Signature = nil },
			func(r *intent.Record) { r.State = intent.StateUnknown },
			func(r *intent.Record) { r.LastValidBlockHeight = 0 },
			func(r *intent.Record) { r.ErrorClass = pointer.String("transient") },
		} {
			record := newTestRecord(0, "test_owner", intent.StateUnresolved)
			mutate(record)
			assert.Error(t, s.Save(ctx, record))
		}

		// Nothing reached the ledger, so there's no signature to record
		record := newTestRecord(0, "test_owner", intent.StateNotSubmitted)
		record.Signature = nil
		record.LastValidBlockHeight = 0
		require.NoError(t, s.Save(ctx, record))
	})
}

func testGetAllByOwner(t *testing.T, s intent.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "test_owner_0", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, intent.ErrNotFound, err)

		var records []*intent.Record
		for i := range 100 {
			record := newTestRecord(i, fmt.Sprintf("test_owner_%d", i%2), intent.StateConfirmed)
			require.NoError(t, s.Save(ctx, record))

			if i%2 == 0 {
				records = append(records, record)
			}
		}

		allActual, err := s.GetAllByOwner(ctx, "test_owner_0", query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, allActual, 50)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[i], actual)
		}

		allActual, err = s.GetAllByOwner(ctx, "test_owner_0", query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, allActual, 10)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[50-i-1], actual)
		}

		allActual, err = s.GetAllByOwner(ctx, "test_owner_0", query.ToCursor(records[20].Id), 5, query.Ascending)
		require.NoError(t, err)
		require.Len(t, allActual, 5)
		for i, actual := range allActual {
			assertEquivalentRecords(t, records[20+i+1], actual)
		}

		_, err = s.GetAllByOwner(ctx, "test_owner_0", query.ToCursor(records[49].Id), 10, query.Ascending)
		assert.Equal(t, intent.ErrNotFound, err)
	})
}

func testGetAllByOwnerAndState(t *testing.T, s intent.Store) {
	t.Run("testGetAllByOwnerAndState", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwnerAndState(ctx, "test_owner_0", intent.StateUnresolved)
		assert.Equal(t, intent.ErrNotFound, err)

		var records []*intent.Record
		for i := range 20 {
			state := intent.StateConfirmed
			if i%5 == 0 {
				state = intent.StateUnresolved
			}

			record := newTestRecord(i, fmt.Sprintf("test_owner_%d", i%2), state)
			require.NoError(t, s.Save(ctx, record))

			records = append(records, record)
		}

		for _, owner := range []string{"test_owner_0", "test_owner_1"} {
			for _, state := range []intent.State{intent.StateConfirmed, intent.StateUnresolved} {
				allActual, err := s.GetAllByOwnerAndState(ctx, owner, state)
				require.NoError(t, err)

				var expected []*intent.Record
				for _, record := range records {
					if record.Owner == owner && record.State == state {
						expected = append(expected, record)
					}
				}

				require.Len(t, allActual, len(expected))
				for i, actual := range allActual {
					assertEquivalentRecords(t, expected[i], actual)
				}
			}
		}
	})
}

func testGetAllByState(t *testing.T, s intent.Store) {
	t.Run("testGetAllByState", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByState(ctx, intent.StateUnresolved, query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, intent.ErrNotFound, err)

		var unresolved []*intent.Record
		for i := range 30 {
			state := intent.StateConfirmed
			if i%3 == 0 {
				state = intent.StateUnresolved
			}

			record := newTestRecord(i, fmt.Sprintf("test_owner_%d", i%4), state)
			require.NoError(t, s.Save(ctx, record))

			if state == intent.StateUnresolved {
				unresolved = append(unresolved, record)
			}
		}

		// Spans owners, in id order
		page, err := s.GetAllByState(ctx, intent.StateUnresolved, query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, page, len(unresolved))
		for i, actual := range page {
			assertEquivalentRecords(t, unresolved[i], actual)
		}

		page, err = s.GetAllByState(ctx, intent.StateUnresolved, query.ToCursor(unresolved[3].Id), 4, query.Ascending)
		require.NoError(t, err)
		require.Len(t, page, 4)
		for i, actual := range page {
			assertEquivalentRecords(t, unresolved[4+i], actual)
		}

		page, err = s.GetAllByState(ctx, intent.StateUnresolved, query.EmptyCursor, 2, query.Descending)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assertEquivalentRecords(t, unresolved[len(unresolved)-1], page[0])
		assertEquivalentRecords(t, unresolved[len(unresolved)-2], page[1])

		// A resolved intent drops out of the state
		resolved := unresolved[0]
		resolved.State = intent.StateConfirmed
		require.NoError(t, s.Save(ctx, resolved))

		page, err = s.GetAllByState(ctx, intent.StateUnresolved, query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, page, len(unresolved)-1)
		assert.Equal(t, unresolved[1].IntentId, page[0].IntentId)
	})
}

func testCountByState(t *testing.T, s intent.Store) {
	t.Run("testCountByState", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.CountByState(ctx, intent.StateUnresolved)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		for i := range 10 {
			state := intent.StateConfirmed
			if i < 3 {
				state = intent.StateUnresolved
			}
			require.NoError(t, s.Save(ctx, newTestRecord(i, "test_owner", state)))
		}

		count, err = s.CountByState(ctx, intent.StateUnresolved)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.CountByState(ctx, intent.StateConfirmed)
		require.NoError(t, err)
		assert.EqualValues(t, 7, count)
	})
}

func newTestRecord(i int, owner string, state intent.State) *intent.Record {
	return &intent.Record{
		IntentId: fmt.Sprintf("test_intent_id_%d", i),

		Owner: owner,
		Vault: fmt.Sprintf("test_vault_%s", owner),

		Operation:   lifecycle.OperationDeposit,
		MarketIndex: 1,
		Amount:      uint64(i + 1),

		Signature:            pointer.String(fmt.Sprintf("test_signature_%d", i)),
		LastValidBlockHeight: uint64(1000 + i),

		State: state,

		CreatedAt: time.Now(),
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *intent.Record) {
	assert.Equal(t, obj1.IntentId, obj2.IntentId)

	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Vault, obj2.Vault)

	assert.Equal(t, obj1.Operation, obj2.Operation)
	assert.Equal(t, obj1.MarketIndex, obj2.MarketIndex)
	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.IsAll, obj2.IsAll)

	assert.EqualValues(t, obj1.Signature, obj2.Signature)
	assert.Equal(t, obj1.LastValidBlockHeight, obj2.LastValidBlockHeight)

	assert.Equal(t, obj1.State, obj2.State)

	assert.EqualValues(t, obj1.ErrorClass, obj2.ErrorClass)
	assert.EqualValues(t, obj1.ErrorMessage, obj2.ErrorMessage)

	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
}
