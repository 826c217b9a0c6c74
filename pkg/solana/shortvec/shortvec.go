// Package shortvec implements the compact-u16 length prefix used throughout
// the Solana transaction wire format: seven bits per byte, least significant
// group first, with the high bit marking continuation.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedSize is the number of bytes needed to encode math.MaxUint16.
const MaxEncodedSize = 3

var (
	ErrLengthTooLarge = errors.Errorf("length exceeds %d", math.MaxUint16)
	ErrInvalidLength  = errors.New("invalid shortvec length encoding")
)

// EncodeLen writes length to w and returns the number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthTooLarge
	}

	var encoded [MaxEncodedSize]byte
	size := 0
	for {
		encoded[size] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			size++
			break
		}
		encoded[size] |= 0x80
		size++
	}

	return w.Write(encoded[:size])
}

// DecodeLen reads a length written by EncodeLen.
func DecodeLen(r io.Reader) (int, error) {
	var (
		length int
		b      [1]byte
	)

	for i := 0; ; i++ {
		if i == MaxEncodedSize {
			return 0, ErrInvalidLength
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		length |= int(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			break
		}
	}

	if length > math.MaxUint16 {
		return 0, ErrInvalidLength
	}
	return length, nil
}
