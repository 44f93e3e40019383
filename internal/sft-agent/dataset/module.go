package dataset

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

type processorParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
}

// Module provides the data preparation Processor.
var Module = fx.Provide(
	func(v *viper.Viper, params processorParams) (*Processor, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithFs(params.Fs),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating dataset config: %w", err)
		}
		return NewProcessor(config)
	})
