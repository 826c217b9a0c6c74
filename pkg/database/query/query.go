package query

import (
	"strconv"

	"github.com/pkg/errors"
)

const (
	maxPagingLimit = 1000
)

var (
	ErrQueryNotSupported = errors.New("the requested query option is not supported")
	ErrInvalidCursor     = errors.New("cursor must be 8 bytes")
)

// Ordering is the direction records are returned in, by insertion order.
type Ordering uint8

const (
	Ascending Ordering = iota
	Descending
)

type QueryOptions struct {
	Cursor Cursor
	Limit  uint64
	SortBy Ordering
}

type Option func(*QueryOptions) error

func WithCursor(cursor Cursor) Option {
	return func(qo *QueryOptions) error {
		if len(cursor) != 0 && len(cursor) != 8 {
			return ErrInvalidCursor
		}
		qo.Cursor = cursor
		return nil
	}
}

func WithLimit(limit uint64) Option {
	return func(qo *QueryOptions) error {
		if limit > maxPagingLimit {
			return errors.Wrapf(ErrQueryNotSupported, "limit exceeds %d", maxPagingLimit)
		}
		qo.Limit = limit
		return nil
	}
}

func WithDirection(direction Ordering) Option {
	return func(qo *QueryOptions) error {
		if direction != Ascending && direction != Descending {
			return errors.Wrapf(ErrQueryNotSupported, "direction %d", direction)
		}
		qo.SortBy = direction
		return nil
	}
}

// DefaultPaginationHandler applies opts over the default of the first page of
// up to 1000 records in ascending order.
func DefaultPaginationHandler(opts ...Option) (*QueryOptions, error) {
	req := &QueryOptions{
		Limit:  maxPagingLimit,
		SortBy: Ascending,
	}
	for _, opt := range opts {
		if err := opt(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// PaginateQuery appends cursor, ordering and limit clauses to a query ending
// in a WHERE clause, numbering the new placeholders after args. The table must
// have a serial id column.
//
//	PaginateQuery("SELECT * FROM t WHERE owner = $1", []interface{}{owner}, ToCursor(10), 5, Descending)
//	> "SELECT * FROM t WHERE owner = $1 AND id < $2 ORDER BY id DESC LIMIT $3", [owner, 10, 5]
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	comparison, order := " > ", " ASC"
	if direction == Descending {
		comparison, order = " < ", " DESC"
	}

	if len(cursor) > 0 {
		args = append(args, cursor.ToUint64())
		query += " AND id" + comparison + "$" + strconv.Itoa(len(args))
	}

	query += " ORDER BY id" + order

	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return query, args
}
