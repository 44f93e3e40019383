package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/pkg/configutils"
	"github.com/sgl-project/sft-agent/pkg/constants"
)

func configProvider(cli *cobra.Command) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		return configutils.NewViper(constants.AgentAppName, cli.Flags(), configFilePath)
	})
}
