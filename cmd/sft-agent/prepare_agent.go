package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/pkg/afero"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// PrepareAgent loads, splits, formats and stores the dataset partitions
type PrepareAgent struct {
	processor *dataset.Processor
	logger    logging.Interface
}

func (p *PrepareAgent) Name() string {
	return "prepare"
}

func (p *PrepareAgent) ShortDescription() string {
	return "Prepare the dataset partitions"
}

func (p *PrepareAgent) LongDescription() string {
	return "Loads the screening dataset (and PubMedQA when enabled), splits it into train, validation " +
		"and test partitions, formats them as conversations and stores them as JSONL files."
}

func (p *PrepareAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, p, p.Start)
	}
}

// FxModules does not need the runtime client, so it skips coreModules.
func (p *PrepareAgent) FxModules() []fx.Option {
	return []fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed(constants.AnotherLogConfigKey),
		logging.UseLoggingInterface,
		dataset.Module,
		fx.Invoke(func(params agentParams, processor *dataset.Processor) {
			p.processor = processor
			p.logger = params.AnotherLogger
		}),
	}
}

func (p *PrepareAgent) Start(ctx context.Context) error {
	prepared, err := p.processor.Prepare(ctx)
	if err != nil {
		return err
	}
	p.logger.WithField("train", prepared.Files.Train).
		WithField("validation", prepared.Files.Validation).
		WithField("test", prepared.Files.Test).
		Info("Partitions stored")
	return nil
}

func NewPrepareAgent() *PrepareAgent {
	return &PrepareAgent{}
}
