package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/config"
)

// ErrUnsupportedConversion indicates the wrapper can't convert from the
// source value's type
var ErrUnsupportedConversion = errors.New("config: wrapper conversion from source type not implemented")

type converter[T any] func(value interface{}) (T, error)

type typedConfig[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](override config.Config, defaultValue T, convert converter[T]) *typedConfig[T] {
	return &typedConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe returns the override's value when it has one, and the default when
// it doesn't. On error, the last value returned is returned again.
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)
	if err == config.ErrNoValue {
		c.set(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return c.last(), err
	}

	value, err := c.convert(override)
	if err != nil {
		return c.last(), err
	}

	c.set(value)
	return value, nil
}

func (c *typedConfig[T]) Get(ctx context.Context) T {
	value, _ := c.GetSafe(ctx)
	return value
}

func (c *typedConfig[T]) Shutdown() {
	c.override.Shutdown()
}

func (c *typedConfig[T]) last() T {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastValue
}

func (c *typedConfig[T]) set(value T) {
	c.stateMu.Lock()
	c.lastValue = value
	c.stateMu.Unlock()
}

// NewUint64Config wraps a config holding a uint64, a uint or its decimal
// string form
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return newTypedConfig(override, defaultValue, func(value interface{}) (uint64, error) {
		switch value := value.(type) {
		case []byte:
			return strconv.ParseUint(string(value), 10, 64)
		case uint64:
			return value, nil
		case uint:
			return uint64(value), nil
		}
		return 0, ErrUnsupportedConversion
	})
}

// NewStringConfig wraps a config holding a string or raw bytes
func NewStringConfig(override config.Config, defaultValue string) config.String {
	return newTypedConfig(override, defaultValue, func(value interface{}) (string, error) {
		switch value := value.(type) {
		case []byte:
			return string(value), nil
		case string:
			return value, nil
		}
		return "", ErrUnsupportedConversion
	})
}

// NewDurationConfig wraps a config holding a time.Duration or a string
// accepted by time.ParseDuration
func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return newTypedConfig(override, defaultValue, func(value interface{}) (time.Duration, error) {
		switch value := value.(type) {
		case []byte:
			return time.ParseDuration(string(value))
		case time.Duration:
			return value, nil
		}
		return 0, ErrUnsupportedConversion
	})
}
