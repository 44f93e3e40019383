package main

import (
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/afero"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// coreModules are shared by every agent: filesystem, loggers and the
// fine-tuning runtime client.
func coreModules(extra ...fx.Option) []fx.Option {
	return append([]fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed(constants.AnotherLogConfigKey),
		logging.UseLoggingInterface,
		ftruntime.Module,
	}, extra...)
}

// agentParams carries the component logger into agents.
type agentParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
}
