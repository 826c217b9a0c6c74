package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	cursor := ToCursor(1234)
	assert.Len(t, cursor, 8)
	assert.EqualValues(t, 1234, cursor.ToUint64())
	assert.NotEmpty(t, cursor.ToBase58())
	assert.Empty(t, EmptyCursor)
}

func TestDefaultPaginationHandler(t *testing.T) {
	req, err := DefaultPaginationHandler()
	require.NoError(t, err)
	assert.EqualValues(t, maxPagingLimit, req.Limit)
	assert.Equal(t, Ascending, req.SortBy)
	assert.Empty(t, req.Cursor)

	req, err = DefaultPaginationHandler(WithLimit(10), WithDirection(Descending), WithCursor(ToCursor(5)))
	require.NoError(t, err)
	assert.EqualValues(t, 10, req.Limit)
	assert.Equal(t, Descending, req.SortBy)
	assert.EqualValues(t, 5, req.Cursor.ToUint64())

	_, err = DefaultPaginationHandler(WithLimit(maxPagingLimit + 1))
	assert.ErrorIs(t, err, ErrQueryNotSupported)

	_, err = DefaultPaginationHandler(WithDirection(Ordering(7)))
	assert.ErrorIs(t, err, ErrQueryNotSupported)

	_, err = DefaultPaginationHandler(WithCursor(Cursor{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPaginateQuery(t *testing.T) {
	base := "SELECT * FROM t WHERE owner = $1"

	query, args := PaginateQuery(base, []interface{}{"owner"}, EmptyCursor, 0, Ascending)
	assert.Equal(t, base+" ORDER BY id ASC", query)
	assert.Equal(t, []interface{}{"owner"}, args)

	query, args = PaginateQuery(base, []interface{}{"owner"}, ToCursor(10), 5, Ascending)
	assert.Equal(t, base+" AND id > $2 ORDER BY id ASC LIMIT $3", query)
	assert.Equal(t, []interface{}{"owner", uint64(10), uint64(5)}, args)

	query, args = PaginateQuery(base, []interface{}{"owner"}, ToCursor(10), 5, Descending)
	assert.Equal(t, base+" AND id < $2 ORDER BY id DESC LIMIT $3", query)
	assert.Equal(t, []interface{}{"owner", uint64(10), uint64(5)}, args)
}

func TestPageSlice(t *testing.T) {
	ids := []uint64{2, 4, 6, 8, 10}
	identity := func(id uint64) uint64 { return id }

	for _, tc := range []struct {
		cursor    Cursor
		limit     uint64
		direction Ordering
		expected  []uint64
	}{
		{EmptyCursor, 0, Ascending, []uint64{2, 4, 6, 8, 10}},
		{EmptyCursor, 2, Ascending, []uint64{2, 4}},
		{EmptyCursor, 2, Descending, []uint64{10, 8}},
		{ToCursor(4), 2, Ascending, []uint64{6, 8}},
		{ToCursor(5), 10, Ascending, []uint64{6, 8, 10}},
		{ToCursor(8), 10, Descending, []uint64{6, 4, 2}},
		{ToCursor(10), 10, Ascending, nil},
		{ToCursor(2), 10, Descending, nil},
	} {
		assert.Equal(t, tc.expected, PageSlice(ids, identity, tc.cursor, tc.limit, tc.direction))
	}
}
