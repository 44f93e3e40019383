package pipeline

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

type driverParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
	Runtime       ftruntime.Runtime
	Processor     *dataset.Processor
	Trainer       *trainer.Config
	Evaluator     *evaluator.Config
}

// Module provides the pipeline Driver.
var Module = fx.Provide(
	func(v *viper.Viper, params driverParams) (*Driver, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithFs(params.Fs),
			WithRuntime(params.Runtime),
			WithComponents(params.Processor, params.Trainer, params.Evaluator),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating pipeline config: %w", err)
		}
		return NewDriver(config)
	})
