package trainer

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/hfutil/hub"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

type configParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
	Runtime       ftruntime.Runtime
	Hub           *hub.HubClient
}

// Module provides the trainer *Config. The Trainer itself is built by the
// agent once partitions are available.
var Module = fx.Provide(
	func(v *viper.Viper, params configParams) (*Config, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithFs(params.Fs),
			WithRuntime(params.Runtime),
			WithModelConfigs(params.Hub),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating trainer config: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("trainer config invalid: %w", err)
		}
		return config, nil
	})
