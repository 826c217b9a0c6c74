package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/config"
	"github.com/code-payments/vault-server/pkg/config/memory"
)

// testValueLifecycle walks a wrapped config through an unset override, a set
// override, an erroring override and an unsupported source type.
func testValueLifecycle[T any](t *testing.T, newWrapper func(config.Config) config.Value[T], defaultValue, overrideValue T, overrideSources []interface{}) {
	ctx := context.Background()

	mock := memory.NewConfig(nil)
	wrapper := newWrapper(mock)

	val, err := wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	for _, source := range overrideSources {
		mock.SetValue(source)
		val, err = wrapper.GetSafe(ctx)
		require.NoError(t, err, "%v", source)
		assert.Equal(t, overrideValue, val)
		assert.Equal(t, overrideValue, wrapper.Get(ctx))
	}

	// The last observed value survives an error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, overrideValue, val)
	assert.Equal(t, overrideValue, wrapper.Get(ctx))

	mock.StopInducingErrors()
	mock.ClearValue()
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	mock.SetValue(struct{}{})
	val, err = wrapper.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.Equal(t, defaultValue, val)

	wrapper.Shutdown()
	_, err = mock.Get(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestUint64Config(t *testing.T) {
	testValueLifecycle(
		t,
		func(c config.Config) config.Value[uint64] { return NewUint64Config(c, 5) },
		5,
		42,
		[]interface{}{uint64(42), uint(42), []byte("42")},
	)
}

func TestStringConfig(t *testing.T) {
	testValueLifecycle(
		t,
		func(c config.Config) config.Value[string] { return NewStringConfig(c, "devnet") },
		"devnet",
		"mainnet",
		[]interface{}{"mainnet", []byte("mainnet")},
	)
}

func TestDurationConfig(t *testing.T) {
	testValueLifecycle(
		t,
		func(c config.Config) config.Value[time.Duration] { return NewDurationConfig(c, time.Second) },
		time.Second,
		90*time.Second,
		[]interface{}{90 * time.Second, []byte("90s"), []byte("1m30s")},
	)
}

func TestParseErrorKeepsLastValue(t *testing.T) {
	ctx := context.Background()

	mock := memory.NewConfig(uint64(7))
	wrapper := NewUint64Config(mock, 1)
	assert.EqualValues(t, 7, wrapper.Get(ctx))

	mock.SetValue([]byte("seven"))
	val, err := wrapper.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 7, val)

	durationMock := memory.NewConfig([]byte("soon"))
	duration := NewDurationConfig(durationMock, time.Minute)
	val2, err := duration.GetSafe(ctx)
	assert.Error(t, err)
	assert.Equal(t, time.Minute, val2)
}
