// Package binary reads and writes the little-endian, fixed width fields used
// by Solana account and instruction layouts. Each helper advances offset by
// the width of the field it handled, so layouts read top to bottom.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

var le = binary.LittleEndian

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	advance(offset, 1)
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	advance(offset, 1)
}

func PutBool(dst []byte, v bool, offset *int) {
	var b uint8
	if v {
		b = 1
	}
	PutUint8(dst, b, offset)
}

func GetBool(src []byte, dst *bool, offset *int) {
	*dst = isSet(src)
	advance(offset, 1)
}

func PutUint16(dst []byte, v uint16, offset *int) {
	le.PutUint16(dst, v)
	advance(offset, 2)
}

func GetUint16(src []byte, dst *uint16, offset *int) {
	*dst = le.Uint16(src)
	advance(offset, 2)
}

func PutUint32(dst []byte, v uint32, offset *int) {
	le.PutUint32(dst, v)
	advance(offset, 4)
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = le.Uint32(src)
	advance(offset, 4)
}

func PutUint64(dst []byte, v uint64, offset *int) {
	le.PutUint64(dst, v)
	advance(offset, 8)
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = le.Uint64(src)
	advance(offset, 8)
}

func PutInt64(dst []byte, v int64, offset *int) {
	PutUint64(dst, uint64(v), offset)
}

func GetInt64(src []byte, dst *int64, offset *int) {
	var v uint64
	GetUint64(src, &v, offset)
	*dst = int64(v)
}

// PutKey32 writes a public key. A nil key is written as zeros.
func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	advance(offset, ed25519.PublicKeySize)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = readKey(src)
	advance(offset, ed25519.PublicKeySize)
}

// PutOptionalKey32 writes a COption<Pubkey>. optionSize is the width of the
// tag, which differs between programs. The field is always fully sized, so
// an absent key still advances offset.
func PutOptionalKey32(dst []byte, src []byte, offset *int, optionSize int) {
	if len(src) > 0 {
		dst[0] = 1
		copy(dst[optionSize:], src)
	}
	advance(offset, optionSize+ed25519.PublicKeySize)
}

func GetOptionalKey32(src []byte, dst *ed25519.PublicKey, offset *int, optionSize int) {
	if isSet(src) {
		*dst = readKey(src[optionSize:])
	}
	advance(offset, optionSize+ed25519.PublicKeySize)
}

func PutOptionalUint64(dst []byte, v *uint64, offset *int, optionSize int) {
	if v != nil {
		dst[0] = 1
		le.PutUint64(dst[optionSize:], *v)
	}
	advance(offset, optionSize+8)
}

func GetOptionalUint64(src []byte, dst **uint64, offset *int, optionSize int) {
	if isSet(src) {
		v := le.Uint64(src[optionSize:])
		*dst = &v
	}
	advance(offset, optionSize+8)
}

// PutBytes copies a fixed width field, such as an 8 byte account or
// instruction discriminator.
func PutBytes(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	advance(offset, len(src))
}

func GetBytes(src []byte, dst *[]byte, length int, offset *int) {
	*dst = append([]byte(nil), src[:length]...)
	advance(offset, length)
}

func readKey(src []byte) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, src)
	return key
}

func isSet(src []byte) bool {
	return src[0] == 1
}

func advance(offset *int, n int) {
	*offset += n
}
