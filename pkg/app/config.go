package app

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the application specific configuration, taken from the "app"
// section of the config file. Keys are lower case.
type Config map[string]interface{}

// BaseConfig contains the configuration shared by every process.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	// ShutdownGracePeriod bounds how long App.Stop may take once a shutdown
	// starts.
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ShutdownGracePeriod: 30 * time.Second,
}

// GetString returns the string at key, or defaultValue when it's unset or
// empty.
func (c Config) GetString(key, defaultValue string) string {
	if value, ok := c[key].(string); ok && len(value) > 0 {
		return value
	}
	return defaultValue
}

// GetDuration parses the duration at key, such as "90s", returning
// defaultValue when it's unset.
func (c Config) GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	switch value := c[key].(type) {
	case nil:
		return defaultValue, nil
	case time.Duration:
		return value, nil
	case string:
		if len(value) == 0 {
			return defaultValue, nil
		}

		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid duration for %s", key)
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported type %T for %s", value, key)
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	_ = v.BindEnv("log_level", "LOG_LEVEL")

	_ = v.BindEnv("app_name", "APP_NAME")

	_ = v.BindEnv("shutdown_grace_period", "SHUTDOWN_GRACE_PERIOD")

	return v
}

// loadConfig reads the config file at path over the defaults. A missing file
// isn't an error, since every base value can also come from the environment.
func loadConfig(v *viper.Viper, path string) (BaseConfig, error) {
	config := defaultConfig

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return config, errors.Wrap(err, "error reading config")
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "error unmarshalling config")
	}

	if len(config.AppName) == 0 {
		return config, errors.New("must specify an application name")
	}
	if config.ShutdownGracePeriod <= 0 {
		return config, errors.New("shutdown grace period must be positive")
	}
	return config, nil
}
