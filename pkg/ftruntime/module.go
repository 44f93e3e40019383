package ftruntime

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

type runtimeParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
}

// Module provides the runtime client as a Runtime.
var Module = fx.Provide(
	func(v *viper.Viper, params runtimeParams) (Runtime, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating runtime client config: %w", err)
		}
		return NewClient(config)
	})
