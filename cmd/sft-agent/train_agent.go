package main

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/hfutil/hub"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// TrainAgent fine-tunes the base model on stored partitions and saves the adapter
type TrainAgent struct {
	processor *dataset.Processor
	config    *trainer.Config
	logger    logging.Interface
}

func (t *TrainAgent) Name() string {
	return "train"
}

func (t *TrainAgent) ShortDescription() string {
	return "Train a LoRA adapter on prepared partitions"
}

func (t *TrainAgent) LongDescription() string {
	return "Reads the partitions written by prepare, fine-tunes the quantized base model with a LoRA adapter " +
		"in the fine-tuning runtime, saves the adapter and evaluates it on the validation partition."
}

func (t *TrainAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, t, t.Start)
	}
}

func (t *TrainAgent) FxModules() []fx.Option {
	return coreModules(
		hub.Module,
		dataset.Module,
		trainer.Module,
		fx.Invoke(func(params agentParams, processor *dataset.Processor, config *trainer.Config) {
			t.processor = processor
			t.config = config
			t.logger = params.AnotherLogger
		}),
	)
}

func (t *TrainAgent) Start(ctx context.Context) (err error) {
	partitions, _, err := t.processor.ReadStored()
	if err != nil {
		return err
	}

	tr, err := trainer.New(ctx, t.config, partitions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tr.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	result, err := tr.ModelTraining(ctx)
	if err != nil {
		return err
	}
	logging.WithFields(t.logger, map[string]interface{}{
		"adapter":    result.AdapterDir,
		"output_dir": result.OutputDir,
	}).Info("Training completed")
	return nil
}

func NewTrainAgent() *TrainAgent {
	return &TrainAgent{}
}
