package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/pipeline"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/hfutil/hub"
)

// PipelineAgent implements the AgentModule interface for the end to end run
type PipelineAgent struct {
	driver *pipeline.Driver
}

// Name returns the name of the agent
func (p *PipelineAgent) Name() string {
	return "pipeline"
}

// ShortDescription returns a short description of the agent
func (p *PipelineAgent) ShortDescription() string {
	return "Run the whole fine-tuning workflow"
}

// LongDescription returns a detailed description of the agent
func (p *PipelineAgent) LongDescription() string {
	return "Prepares the dataset partitions, trains a LoRA adapter, merges it into the base model, " +
		"evaluates the merged model on the validation partition and writes the report."
}

// ConfigureCommand configures the agent command
func (p *PipelineAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, p, p.Start)
	}
}

// FxModules returns the fx modules needed by this agent
func (p *PipelineAgent) FxModules() []fx.Option {
	return coreModules(
		hub.Module,
		dataset.Module,
		trainer.Module,
		evaluator.Module,
		pipeline.Module,
		fx.Populate(&p.driver),
	)
}

// Start runs every stage
func (p *PipelineAgent) Start(ctx context.Context) error {
	_, err := p.driver.Run(ctx)
	return err
}

// NewPipelineAgent creates a new pipeline agent
func NewPipelineAgent() *PipelineAgent {
	return &PipelineAgent{}
}
