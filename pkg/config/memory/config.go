package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/vault-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is a config.Config backed by a value held in memory. Tests use it to
// simulate a changing or failing source, and it carries literal overrides in
// production wiring.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	failing  bool
	shutdown bool
}

// NewConfig returns a config holding value. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// NewConfigUnlessZero returns a config with no value when value is the zero
// value for its type
func NewConfigUnlessZero[T comparable](value T) *Config {
	var zero T
	if value == zero {
		return NewConfig(nil)
	}
	return NewConfig(value)
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.failing:
		return nil, errDeveloperInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

// SetValue replaces the value returned by subsequent Get calls
func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

// ClearValue makes subsequent Get calls return config.ErrNoValue
func (c *Config) ClearValue() {
	c.update(func() { c.value = nil })
}

// InduceErrors makes subsequent Get calls fail until StopInducingErrors
func (c *Config) InduceErrors() {
	c.update(func() { c.failing = true })
}

func (c *Config) StopInducingErrors() {
	c.update(func() { c.failing = false })
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}
