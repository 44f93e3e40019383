package logging

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigKey is the viper key holding the root logger configuration.
var ConfigKey = "logging"

// Config holds the configuration for a logger.
type Config struct {
	// Debug forces DEBUG level and the human readable console encoder,
	// whatever Level says.
	Debug bool `mapstructure:"debug"`

	// Level is the minimum level written. Empty means INFO.
	Level Level `mapstructure:"level"`

	// EncodeTimeAsRFC3339Nano switches timestamps to RFC3339Nano.
	EncodeTimeAsRFC3339Nano bool `mapstructure:"encodeTimeAsRFC3339Nano"`

	// DisableConsoleOutput keeps logs out of stdout. Training runs are long
	// and chatty, so some deployments only want the rolling file.
	DisableConsoleOutput bool `mapstructure:"disableConsoleOutput"`

	// Logger configures the rolling log file (filename, maxsize, ...).
	lumberjack.Logger `mapstructure:",squash"`
}

// Option is a configuration option for logging.
type Option func(*Config) error

// Validate ensures the logging Config is valid.
func (c *Config) Validate() error {
	switch {
	case c.MaxSize < 0:
		return fmt.Errorf("maxsize must be >= 0, not %d", c.MaxSize)
	case c.MaxBackups < 0:
		return fmt.Errorf("maxbackups must be >= 0, not %d", c.MaxBackups)
	case c.MaxAge < 0:
		return fmt.Errorf("maxage days must be >= 0, not %d", c.MaxAge)
	}

	if err := c.Level.Validate(); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	return nil
}

// WithViper reads the configuration under the "logging" key.
func WithViper(v *viper.Viper) Option {
	return WithViperKey(v, ConfigKey)
}

// WithViperKey reads the configuration under configKey. The debug flag bound
// at the root of viper is honoured too, so `--debug` affects every logger.
func WithViperKey(v *viper.Viper, configKey string) Option {
	return func(c *Config) error {
		if v == nil {
			return errors.New("nil Viper")
		}

		if err := v.UnmarshalKey(configKey, c); err != nil {
			return err
		}
		if v.GetBool("debug") {
			c.Debug = true
		}
		return nil
	}
}

// WithLevel overrides the logging level.
func WithLevel(level Level) Option {
	return func(c *Config) error {
		c.Level = level
		return nil
	}
}

// Apply takes the supplied options and applies them to the configuration.
func (c *Config) Apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}

		if err := o(c); err != nil {
			return err
		}
	}

	return nil
}

// NewConfig creates a new logging config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}

	return c, nil
}
