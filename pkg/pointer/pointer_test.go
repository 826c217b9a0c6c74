package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	assert.Nil(t, StringCopy(nil))

	original := String("value")
	copied := StringCopy(original)
	require.NotNil(t, copied)
	assert.Equal(t, "value", *copied)
	assert.NotSame(t, original, copied)

	*original = "changed"
	assert.Equal(t, "value", *copied)
}

func TestIfValid(t *testing.T) {
	assert.Nil(t, StringIfValid(false, "value"))
	assert.Equal(t, "value", *StringIfValid(true, "value"))
	assert.Equal(t, uint64(42), *IfValid(true, uint64(42)))
}

func TestOrDefault(t *testing.T) {
	value := String("value")
	assert.Same(t, value, StringOrDefault(value, "default"))
	assert.Equal(t, "default", *StringOrDefault(nil, "default"))
}
