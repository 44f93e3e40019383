package evaluator

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

type configParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Runtime       ftruntime.Runtime
}

// Module provides the evaluator *Config. The Evaluator is built once the
// merged model exists.
var Module = fx.Provide(
	func(v *viper.Viper, params configParams) (*Config, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithRuntime(params.Runtime),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating evaluator config: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("evaluator config invalid: %w", err)
		}
		return config, nil
	})
