package main

import (
	"context"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/pipeline"
)

// EvaluateAgent scores a merged model on the stored validation partition
type EvaluateAgent struct {
	processor *dataset.Processor
	config    *evaluator.Config
}

func (e *EvaluateAgent) Name() string {
	return "evaluate"
}

func (e *EvaluateAgent) ShortDescription() string {
	return "Evaluate a merged model on the validation partition"
}

func (e *EvaluateAgent) LongDescription() string {
	return "Loads evaluator.model_path for generation, answers every validation question and prints " +
		"the configured text metrics against the reference answers."
}

func (e *EvaluateAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, e, e.Start)
	}
}

func (e *EvaluateAgent) FxModules() []fx.Option {
	return coreModules(
		dataset.Module,
		evaluator.Module,
		fx.Populate(&e.processor, &e.config),
	)
}

func (e *EvaluateAgent) Start(ctx context.Context) (err error) {
	partitions, _, err := e.processor.ReadStored()
	if err != nil {
		return err
	}

	ev, err := evaluator.New(ctx, e.config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ev.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	scores, err := ev.EvaluateModel(ctx, partitions.Validation)
	if err != nil {
		return err
	}
	report := pipeline.Report{MergedModel: e.config.ModelPath, Evaluation: scores}
	report.RenderTable(os.Stdout)
	return nil
}

func NewEvaluateAgent() *EvaluateAgent {
	return &EvaluateAgent{}
}
