package common

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_PublicAndPrivate(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for _, value := range [][]byte{publicKey, privateKey} {
		fromBytes, err := NewKeyFromBytes(value)
		require.NoError(t, err)

		fromString, err := NewKeyFromString(base58.Encode(value))
		require.NoError(t, err)

		for _, key := range []*Key{fromBytes, fromString} {
			assert.EqualValues(t, value, key.ToBytes())
			assert.Equal(t, base58.Encode(value), key.ToBase58())
			assert.Equal(t, len(value) == ed25519.PublicKeySize, key.IsPublic())
		}
	}
}

func TestKey_Invalid(t *testing.T) {
	_, err := NewKeyFromString("0OIl")
	assert.Error(t, err)

	_, err = NewKeyFromBytes([]byte("short"))
	assert.True(t, errors.Is(err, ErrInvalidKeySize))

	var nilKey *Key
	assert.Equal(t, ErrNilKey, nilKey.Validate())

	mismatched := &Key{raw: make([]byte, ed25519.PublicKeySize), encoded: "abc"}
	assert.Error(t, mismatched.Validate())
}
