package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Cursor is an opaque position within a paged result set. It encodes the
// database id of the last record returned.
type Cursor []byte

var EmptyCursor = Cursor{}

func ToCursor(id uint64) Cursor {
	return binary.BigEndian.AppendUint64(nil, id)
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
