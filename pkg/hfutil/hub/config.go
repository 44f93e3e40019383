package hub

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/version"
)

// ConfigKey is the viper key of the hub configuration.
const ConfigKey = "hub"

// HubConfig represents the configuration for the Hugging Face Hub client
type HubConfig struct {
	Logger         logging.Interface
	Token          string        `mapstructure:"hf_token"`
	Endpoint       string        `mapstructure:"endpoint" validate:"required,url"`
	Revision       string        `mapstructure:"revision" validate:"required"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

func defaultHubConfig() *HubConfig {
	return &HubConfig{
		Logger:         logging.Discard(),
		Token:          GetHfToken(),
		Endpoint:       GetEndpoint(),
		Revision:       DefaultRevision,
		UserAgent:      version.UserAgent("hub"),
		RequestTimeout: DefaultRequestTimeout,
	}
}

// HubOption represents a configuration option function
type HubOption func(*HubConfig) error

// Apply applies the given options to the configuration
func (c *HubConfig) Apply(opts ...HubOption) error {
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

// NewHubConfig builds and returns a new configuration from the given options
func NewHubConfig(opts ...HubOption) (*HubConfig, error) {
	c := defaultHubConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// WithLogger specifies the logger
func WithLogger(logger logging.Interface) HubOption {
	return func(c *HubConfig) error {
		if logger == nil {
			return errors.New("invalid logger nil")
		}

		c.Logger = logger
		return nil
	}
}

// WithToken specifies the HF token
func WithToken(token string) HubOption {
	return func(c *HubConfig) error {
		c.Token = token
		return nil
	}
}

// WithEndpoint specifies the Hub endpoint
func WithEndpoint(endpoint string) HubOption {
	return func(c *HubConfig) error {
		if endpoint == "" {
			return errors.New("endpoint cannot be empty")
		}
		c.Endpoint = endpoint
		return nil
	}
}

// WithRevision pins the branch, tag or commit files are resolved at.
func WithRevision(revision string) HubOption {
	return func(c *HubConfig) error {
		c.Revision = revision
		return nil
	}
}

// WithViper reads the "hub" key. A token in the file wins over HF_TOKEN.
func WithViper(v *viper.Viper) HubOption {
	return func(c *HubConfig) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding envs: %+v", err)
		}

		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling config: %+v", err)
		}
		return nil
	}
}

// ValidateConfig validates the configuration
func (c *HubConfig) ValidateConfig() error {
	return validator.New().Struct(c)
}
