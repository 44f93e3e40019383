package trainer

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

const (
	// ConfigKey is the viper key of the trainer configuration.
	ConfigKey = "trainer"
	// TrackingConfigKey is the root key of the experiment tracking switch.
	TrackingConfigKey = "tracking"
)

// ConfigFetcher returns a model's config.json, from a local directory or a
// model hub.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context, modelNameOrPath string) ([]byte, error)
}

// Config configures fine-tuning and merging.
type Config struct {
	AnotherLogger logging.Interface `validate:"required"`
	Fs            afero.Fs          `validate:"required"`
	Runtime       ftruntime.Runtime `validate:"required"`
	ModelConfigs  ConfigFetcher     `validate:"required"`
	RunID         string            `validate:"required"`

	BaseModel            string                       `mapstructure:"base_model" validate:"required"`
	Tokenizer            string                       `mapstructure:"tokenizer"`
	DeviceMap            string                       `mapstructure:"device_map"`
	MergeTorchDtype      string                       `mapstructure:"merge_torch_dtype"`
	MaxLength            int                          `mapstructure:"max_length" validate:"gt=0"`
	DataDirectory        string                       `mapstructure:"data_directory" validate:"required"`
	ScratchDirectory     string                       `mapstructure:"scratch_directory" validate:"required"`
	AdapterDirectory     string                       `mapstructure:"adapter_directory" validate:"required"`
	MergedModelDirectory string                       `mapstructure:"merged_model_directory" validate:"required"`
	Metrics              []string                     `mapstructure:"metrics" validate:"min=1"`
	Lora                 ftruntime.LoraConfig         `mapstructure:"lora"`
	Quantization         ftruntime.QuantizationConfig `mapstructure:"quantization"`

	Tracking TrackingConfig
}

// TrackingConfig switches the runtime's experiment tracking integration.
type TrackingConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	ReportTo []string `mapstructure:"report_to"`
	RunName  string   `mapstructure:"run_name"`
}

// Reporters returns the report_to value for the SFT job.
func (t TrackingConfig) Reporters() []string {
	if !t.Enabled {
		return []string{constants.TrackingDisabled}
	}
	if len(t.ReportTo) == 0 {
		return []string{constants.DefaultTrackingReporter}
	}
	return t.ReportTo
}

// Option represents a trainer configuration option.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		AnotherLogger:        logging.Discard(),
		Fs:                   afero.NewOsFs(),
		RunID:                uuid.New().String(),
		BaseModel:            constants.DefaultBaseModel,
		MaxLength:            constants.DefaultMaxLength,
		DataDirectory:        constants.DefaultPartitionDirectory,
		ScratchDirectory:     os.TempDir(),
		AdapterDirectory:     constants.DefaultAdapterDirectory,
		MergedModelDirectory: constants.DefaultMergedModelDirectory,
		Metrics:              []string{"f1", "bleu", "rouge"},
		Lora: ftruntime.LoraConfig{
			R:           constants.DefaultLoraR,
			LoraAlpha:   constants.DefaultLoraAlpha,
			LoraDropout: constants.DefaultLoraDropout,
			Bias:        constants.DefaultLoraBias,
			TaskType:    constants.CausalLMTaskType,
		},
		Quantization: ftruntime.QuantizationConfig{
			LoadIn4Bit:          true,
			ComputeDtype:        constants.DefaultComputeDtype,
			QuantType:           constants.DefaultQuantType,
			PrepareKBitTraining: true,
		},
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

// WithViper reads the "trainer" key and the root "tracking" key.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %w", err)
		}
		if err := configutils.BindEnvsRecursive(v, &c.Tracking, TrackingConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling trainer config: %w", err)
		}
		if err := v.UnmarshalKey(TrackingConfigKey, &c.Tracking); err != nil {
			return fmt.Errorf("error occurred when unmarshalling tracking config: %w", err)
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

// WithFs sets the filesystem shared with the runtime.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) error {
		c.Fs = fs
		return nil
	}
}

// WithRuntime sets the fine-tuning runtime.
func WithRuntime(rt ftruntime.Runtime) Option {
	return func(c *Config) error {
		c.Runtime = rt
		return nil
	}
}

// WithModelConfigs sets where base model configs are fetched from.
func WithModelConfigs(fetcher ConfigFetcher) Option {
	return func(c *Config) error {
		c.ModelConfigs = fetcher
		return nil
	}
}

// WithRunID tags scratch directories and logs with id.
func WithRunID(id string) Option {
	return func(c *Config) error {
		c.RunID = id
		return nil
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
