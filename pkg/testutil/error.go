package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
)

// AssertCustomError verifies that the provided error is a transaction error
// raised by the instruction at index with the provided program error code.
func AssertCustomError(t *testing.T, err error, code, index int) {
	require.Error(t, err)

	actualCode, actualIndex, ok := solana.CustomErrorCode(err)
	require.True(t, ok, err.Error())
	assert.Equal(t, code, actualCode)
	assert.Equal(t, index, actualIndex)
}
