package query

import (
	"slices"
)

// PageSlice is the in-memory counterpart to PaginateQuery. Items must be
// sorted by ascending id.
func PageSlice[T any](items []T, id func(T) uint64, cursor Cursor, limit uint64, direction Ordering) []T {
	var page []T

	include := func(item T) bool {
		if len(cursor) == 0 {
			return true
		}
		if direction == Descending {
			return id(item) < cursor.ToUint64()
		}
		return id(item) > cursor.ToUint64()
	}

	appendItem := func(item T) bool {
		if include(item) {
			page = append(page, item)
		}
		return limit == 0 || uint64(len(page)) < limit
	}

	if direction == Descending {
		for _, item := range slices.Backward(items) {
			if !appendItem(item) {
				break
			}
		}
	} else {
		for _, item := range items {
			if !appendItem(item) {
				break
			}
		}
	}

	return page
}
