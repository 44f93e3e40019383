package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/storage"
)

// Viper keys read by the pipeline.
const (
	ReportConfigKey           = "report"
	MetricsConfigKey          = "metrics"
	PublishConfigKey          = "publish"
	TerminateRuntimeConfigKey = "terminate_runtime"
)

// Config wires the components of an end to end run.
type Config struct {
	AnotherLogger logging.Interface  `validate:"required"`
	Fs            afero.Fs           `validate:"required"`
	Runtime       ftruntime.Runtime  `validate:"required"`
	Processor     *dataset.Processor `validate:"required"`
	Trainer       *trainer.Config    `validate:"required"`
	Evaluator     *evaluator.Config  `validate:"required"`

	// Publisher overrides the S3 client built from Publish.S3.
	Publisher Publisher
	// Stdout receives the report table.
	Stdout io.Writer

	Report           ReportConfig  `mapstructure:"report"`
	Metrics          MetricsConfig `mapstructure:"metrics"`
	Publish          PublishConfig `mapstructure:"publish"`
	TerminateRuntime bool          `mapstructure:"terminate_runtime"`
}

// ReportConfig locates the report JSON.
type ReportConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// MetricsConfig enables the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// PublishConfig controls uploading the merged model and report.
type PublishConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	URI     string         `mapstructure:"uri" validate:"required_if=Enabled true"`
	S3      storage.Config `mapstructure:"s3"`
}

// Option represents a pipeline configuration option.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		AnotherLogger: logging.Discard(),
		Stdout:        os.Stdout,
		Report: ReportConfig{
			Path: constants.DefaultReportPath,
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

// WithViper reads the report, metrics, publish and terminate_runtime keys.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		sections := []struct {
			key    string
			target interface{}
		}{
			{ReportConfigKey, &c.Report},
			{MetricsConfigKey, &c.Metrics},
			{PublishConfigKey, &c.Publish},
		}
		for _, s := range sections {
			if err := configutils.BindEnvsRecursive(v, s.target, s.key); err != nil {
				return fmt.Errorf("error occurred when binding environment variables: %w", err)
			}
			if err := v.UnmarshalKey(s.key, s.target); err != nil {
				return fmt.Errorf("error occurred when unmarshalling %s config: %w", s.key, err)
			}
		}
		if v.IsSet(TerminateRuntimeConfigKey) {
			c.TerminateRuntime = v.GetBool(TerminateRuntimeConfigKey)
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

// WithFs sets the filesystem for reports and publish archives.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) error {
		c.Fs = fs
		return nil
	}
}

// WithRuntime sets the fine-tuning runtime client.
func WithRuntime(rt ftruntime.Runtime) Option {
	return func(c *Config) error {
		c.Runtime = rt
		return nil
	}
}

// WithComponents sets the data processor and the trainer and evaluator configurations.
func WithComponents(p *dataset.Processor, tc *trainer.Config, ec *evaluator.Config) Option {
	return func(c *Config) error {
		c.Processor = p
		c.Trainer = tc
		c.Evaluator = ec
		return nil
	}
}

// WithPublisher replaces the S3 publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Config) error {
		c.Publisher = p
		return nil
	}
}

// WithStdout redirects the report table.
func WithStdout(w io.Writer) Option {
	return func(c *Config) error {
		c.Stdout = w
		return nil
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Publish.Enabled {
		if _, err := storage.ParseURI(c.Publish.URI); err != nil {
			return fmt.Errorf("publish.uri: %w", err)
		}
	}
	return nil
}
