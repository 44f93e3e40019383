package ftruntime

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// ConfigKey is the viper key of the runtime client configuration.
const ConfigKey = "runtime"

// Config configures the runtime client.
type Config struct {
	AnotherLogger logging.Interface `validate:"required"`

	Endpoint       string        `mapstructure:"endpoint" validate:"required,url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" validate:"gte=0"`
	RetryInterval  time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	ReleaseTimeout time.Duration `mapstructure:"release_timeout" validate:"gt=0"`
}

// Option represents a runtime client configuration option.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		AnotherLogger:  logging.Discard(),
		Endpoint:       constants.RuntimeEndpoint,
		StartupTimeout: constants.RuntimeStartupTimeout,
		RetryInterval:  constants.RuntimeRetryInterval,
		PollInterval:   constants.RuntimeStatusPollInterval,
		ReleaseTimeout: constants.RuntimeReleaseTimeout,
	}
}

// Apply applies the given options to the configuration.
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

// NewConfig builds a configuration on top of the defaults.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// WithViper reads the "runtime" key.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling runtime config: %w", err)
		}
		return nil
	}
}

// WithAnotherLog sets the logger.
func WithAnotherLog(logger logging.Interface) Option {
	return func(c *Config) error {
		c.AnotherLogger = logger
		return nil
	}
}

// WithEndpoint sets the runtime base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Endpoint = endpoint
		return nil
	}
}

// WithIntervals sets the readiness retry and status poll intervals.
func WithIntervals(retry, poll time.Duration) Option {
	return func(c *Config) error {
		c.RetryInterval = retry
		c.PollInterval = poll
		return nil
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
