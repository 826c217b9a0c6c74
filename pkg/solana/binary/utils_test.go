package binary

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	discriminator := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	optionalValue := uint64(77)

	buf := make([]byte, 8+32+(4+32)+8+4+2+1+8+1+(4+8))

	var offset int
	PutBytes(buf[offset:], discriminator, &offset)
	PutKey32(buf[offset:], key, &offset)
	PutOptionalKey32(buf[offset:], nil, &offset, 4)
	PutUint64(buf[offset:], 1<<40, &offset)
	PutUint32(buf[offset:], 1<<20, &offset)
	PutUint16(buf[offset:], 513, &offset)
	PutUint8(buf[offset:], 255, &offset)
	PutInt64(buf[offset:], -42, &offset)
	PutBool(buf[offset:], true, &offset)
	PutOptionalUint64(buf[offset:], &optionalValue, &offset, 4)
	require.Equal(t, len(buf), offset)

	var (
		actualDiscriminator []byte
		actualKey           ed25519.PublicKey
		actualOptionalKey   ed25519.PublicKey
		u64                 uint64
		u32                 uint32
		u16                 uint16
		u8                  uint8
		i64                 int64
		b                   bool
		actualOptional      *uint64
	)

	offset = 0
	GetBytes(buf[offset:], &actualDiscriminator, 8, &offset)
	GetKey32(buf[offset:], &actualKey, &offset)
	GetOptionalKey32(buf[offset:], &actualOptionalKey, &offset, 4)
	GetUint64(buf[offset:], &u64, &offset)
	GetUint32(buf[offset:], &u32, &offset)
	GetUint16(buf[offset:], &u16, &offset)
	GetUint8(buf[offset:], &u8, &offset)
	GetInt64(buf[offset:], &i64, &offset)
	GetBool(buf[offset:], &b, &offset)
	GetOptionalUint64(buf[offset:], &actualOptional, &offset, 4)
	require.Equal(t, len(buf), offset)

	assert.Equal(t, discriminator, actualDiscriminator)
	assert.EqualValues(t, key, actualKey)
	assert.Nil(t, actualOptionalKey)
	assert.EqualValues(t, 1<<40, u64)
	assert.EqualValues(t, 1<<20, u32)
	assert.EqualValues(t, 513, u16)
	assert.EqualValues(t, 255, u8)
	assert.EqualValues(t, -42, i64)
	assert.True(t, b)
	require.NotNil(t, actualOptional)
	assert.EqualValues(t, 77, *actualOptional)
}
