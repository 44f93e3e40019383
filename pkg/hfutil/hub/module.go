package hub

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// HubClientParams represents the parameters that can be injected into the Hub client
type HubClientParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
}

// Module provides a *HubClient configured from the "hub" key.
var Module = fx.Provide(
	func(v *viper.Viper, params HubClientParams) (*HubClient, error) {
		config, err := NewHubConfig(
			WithViper(v),
			WithLogger(params.AnotherLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating hub config: %w", err)
		}
		return NewHubClient(config, params.Fs)
	})
