package evaluator

import (
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// ConfigKey is the viper key of the evaluator configuration.
const ConfigKey = "evaluator"

// Config configures the generation evaluation.
type Config struct {
	AnotherLogger logging.Interface `validate:"required"`
	Runtime       ftruntime.Runtime `validate:"required"`

	// ChatModel replaces the OpenAI-compatible client bound to the runtime.
	ChatModel model.BaseChatModel

	ModelPath      string        `mapstructure:"model_path" validate:"required"`
	Tokenizer      string        `mapstructure:"tokenizer" validate:"required"`
	Device         string        `mapstructure:"device"`
	DeviceMap      string        `mapstructure:"device_map"`
	TorchDtype     string        `mapstructure:"torch_dtype" validate:"required"`
	MaxNewTokens   int           `mapstructure:"max_new_tokens" validate:"gte=0"`
	Temperature    *float32      `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=1"`
	Metrics        []string      `mapstructure:"metrics" validate:"min=1"`
}

// Option represents an evaluator configuration option.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		AnotherLogger: logging.Discard(),
		ModelPath:     constants.DefaultMergedModelDirectory,
		Tokenizer:     constants.DefaultBaseModel,
		DeviceMap:     "auto",
		TorchDtype:    constants.DefaultComputeDtype,
		MaxNewTokens:  256,
		Concurrency:   1,
		Metrics:       []string{"f1", "rouge", "bleu"},
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

// WithViper reads the "evaluator" key.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling evaluator config: %w", err)
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

// WithRuntime sets the runtime hosting the generation pipeline.
func WithRuntime(rt ftruntime.Runtime) Option {
	return func(c *Config) error {
		c.Runtime = rt
		return nil
	}
}

// WithChatModel generates through m instead of the runtime's
// OpenAI-compatible endpoint.
func WithChatModel(m model.BaseChatModel) Option {
	return func(c *Config) error {
		c.ChatModel = m
		return nil
	}
}

// WithModelPath points the evaluator at a model directory.
func WithModelPath(path string) Option {
	return func(c *Config) error {
		c.ModelPath = path
		return nil
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
