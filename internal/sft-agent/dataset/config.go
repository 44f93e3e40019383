package dataset

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// ConfigKey is the viper key of the dataset configuration.
const ConfigKey = "dataset"

// Config configures data preparation.
type Config struct {
	AnotherLogger logging.Interface `validate:"required"`
	Fs            afero.Fs          `validate:"required"`

	ScreeningPath      string         `mapstructure:"screening_path" validate:"required"`
	Delimiter          string         `mapstructure:"delimiter" validate:"required,len=1"`
	PartitionDirectory string         `mapstructure:"partition_directory" validate:"required"`
	PubMedQA           PubMedQAConfig `mapstructure:"pubmedqa"`

	// Seed drives the split. Unset means a fresh random seed per run.
	Seed *uint64 `mapstructure:"seed"`
}

// PubMedQAConfig configures the optional PubMedQA source.
type PubMedQAConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Directory string   `mapstructure:"directory" validate:"required_if=Enabled true"`
	Files     []string `mapstructure:"files"`
}

// Option represents a dataset configuration option.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		AnotherLogger:      logging.Discard(),
		Fs:                 afero.NewOsFs(),
		ScreeningPath:      constants.DefaultScreeningDatasetPath,
		Delimiter:          ",",
		PartitionDirectory: constants.DefaultPartitionDirectory,
		PubMedQA: PubMedQAConfig{
			Directory: constants.DefaultPubMedQADirectory,
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

// WithViper reads the "dataset" key.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling dataset config: %w", err)
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

// WithFs sets the filesystem used for PubMedQA and partition files.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) error {
		c.Fs = fs
		return nil
	}
}

// WithSeed fixes the split seed.
func WithSeed(seed uint64) Option {
	return func(c *Config) error {
		c.Seed = &seed
		return nil
	}
}

// WithPubMedQA enables the PubMedQA source rooted at dir.
func WithPubMedQA(dir string) Option {
	return func(c *Config) error {
		c.PubMedQA.Enabled = true
		c.PubMedQA.Directory = dir
		return nil
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
