package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/hfutil/hub"
)

// MergeAgent merges a saved adapter into a fresh copy of the base model
type MergeAgent struct {
	config *trainer.Config
}

func (m *MergeAgent) Name() string {
	return "merge"
}

func (m *MergeAgent) ShortDescription() string {
	return "Merge a trained adapter into the base model"
}

func (m *MergeAgent) LongDescription() string {
	return "Checks that the adapter in trainer.adapter_directory fits trainer.base_model, merges it " +
		"and saves the standalone model to trainer.merged_model_directory."
}

func (m *MergeAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, m, m.Start)
	}
}

func (m *MergeAgent) FxModules() []fx.Option {
	return coreModules(
		hub.Module,
		trainer.Module,
		fx.Populate(&m.config),
	)
}

func (m *MergeAgent) Start(ctx context.Context) error {
	merger, err := trainer.NewMerger(ctx, m.config)
	if err != nil {
		return err
	}
	_, err = merger.MergeAndSave(ctx, m.config.BaseModel, m.config.AdapterDirectory)
	return err
}

func NewMergeAgent() *MergeAgent {
	return &MergeAgent{}
}
