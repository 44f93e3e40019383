// Package pipeline runs the whole fine-tuning workflow: prepare the data,
// train a LoRA adapter, merge it into the base model, evaluate the merged
// model and report.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// Stage names, used in logs, errors and metrics.
const (
	StagePrepare  = "prepare"
	StageTrain    = "train"
	StageMerge    = "merge"
	StageEvaluate = "evaluate"
	StageReport   = "report"
	StagePublish  = "publish"
)

// Driver sequences the pipeline stages.
type Driver struct {
	config  Config
	logger  logging.Interface
	fs      afero.Fs
	metrics *Metrics
}

// NewDriver constructs a driver from the given configuration.
func NewDriver(config *Config) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config invalid: %w", err)
	}
	return &Driver{
		config:  *config,
		logger:  config.AnotherLogger.WithField(logging.RunIDKey, config.Trainer.RunID),
		fs:      config.Fs,
		metrics: NewMetrics(),
	}, nil
}

// Metrics returns the collectors updated by Run.
func (d *Driver) Metrics() *Metrics {
	return d.metrics
}

func (d *Driver) stage(ctx context.Context, report *Report, name string, fn func(ctx context.Context) error) error {
	logger := d.logger.WithField(logging.StageKey, name)
	logger.Info("Stage started")

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	report.addStage(name, elapsed)
	d.metrics.observeStage(name, elapsed, err)
	if err != nil {
		logger.WithError(err).Error("Stage failed")
		return fmt.Errorf("%s stage: %w", name, err)
	}
	logger.WithField("seconds", elapsed.Seconds()).Info("Stage completed")
	return nil
}

// closer releases a runtime model.
type closer interface {
	Close(ctx context.Context) error
}

// release closes c and folds a failure into err without hiding it.
func release(ctx context.Context, c closer, err *error) {
	if closeErr := c.Close(ctx); closeErr != nil {
		*err = multierror.Append(*err, closeErr).ErrorOrNil()
	}
}

// Run executes every stage in order and stops at the first failure. Models
// are released when their stage ends, so at most one is resident at a time.
func (d *Driver) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{
		RunID:     d.config.Trainer.RunID,
		BaseModel: d.config.Trainer.BaseModel,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		d.metrics.setSuccess(err == nil)
		if path := d.config.Metrics.Textfile; path != "" {
			if writeErr := d.metrics.WriteTextfile(path); writeErr != nil {
				err = multierror.Append(err, fmt.Errorf("writing metrics textfile: %w", writeErr)).ErrorOrNil()
			}
		}
	}()

	formatted, err := d.prepare(ctx, report)
	if err != nil {
		return report, err
	}

	var tr *trainer.Trainer
	err = d.stage(ctx, report, StageTrain, func(ctx context.Context) (err error) {
		tr, err = trainer.New(ctx, d.config.Trainer, formatted)
		if err != nil {
			return err
		}
		result, err := tr.ModelTraining(ctx)
		if err != nil {
			release(ctx, tr, &err)
			return err
		}
		report.AdapterDirectory = result.AdapterDir
		report.TrainingMetrics = result.TrainingMetrics
		report.TrainerMetrics = result.Metrics
		return nil
	})
	if err != nil {
		return report, err
	}

	err = d.stage(ctx, report, StageMerge, func(ctx context.Context) (err error) {
		defer release(ctx, tr, &err)
		report.MergedModel, err = tr.MergeAndSave(ctx, d.config.Trainer.BaseModel, report.AdapterDirectory)
		return err
	})
	if err != nil {
		return report, err
	}

	validation := formatted.Validation
	err = d.stage(ctx, report, StageEvaluate, func(ctx context.Context) (err error) {
		evalConfig := *d.config.Evaluator
		evalConfig.ModelPath = report.MergedModel
		ev, err := evaluator.New(ctx, &evalConfig)
		if err != nil {
			return err
		}
		defer release(ctx, ev, &err)

		report.Evaluation, err = ev.EvaluateModel(ctx, validation)
		return err
	})
	if err != nil {
		return report, err
	}
	d.metrics.setEvaluation(report.Evaluation)

	err = d.stage(ctx, report, StageReport, func(context.Context) error {
		report.FinishedAt = time.Now().UTC()
		report.RenderTable(d.config.Stdout)
		return report.WriteJSON(d.fs, d.config.Report.Path, d.logger)
	})
	if err != nil {
		return report, err
	}

	if d.config.Publish.Enabled {
		err = d.stage(ctx, report, StagePublish, func(ctx context.Context) error {
			workDir := filepath.Join(d.config.Trainer.ScratchDirectory, "publish-"+report.RunID)
			published, err := d.publish(ctx, report.MergedModel, workDir)
			for _, uri := range published {
				d.logger.WithField("uri", uri).Info("Published artifact")
			}
			return err
		})
		if err != nil {
			return report, err
		}
	}

	if d.config.TerminateRuntime {
		if err := d.config.Runtime.Terminate(ctx); err != nil {
			return report, fmt.Errorf("terminating runtime: %w", err)
		}
	}
	return report, nil
}

// prepare loads, splits, formats and stores the data. Only the formatted
// partitions outlive it.
func (d *Driver) prepare(ctx context.Context, report *Report) (dataset.FormattedPartitions, error) {
	var formatted dataset.FormattedPartitions
	err := d.stage(ctx, report, StagePrepare, func(ctx context.Context) error {
		prepared, err := d.config.Processor.Prepare(ctx)
		if err != nil {
			return err
		}
		report.Seed = prepared.Seed
		report.Partitions = PartitionSizes{
			Train:      len(prepared.Partitions.Train),
			Validation: len(prepared.Partitions.Validation),
			Test:       len(prepared.Partitions.Test),
		}
		formatted = prepared.Formatted
		return nil
	})
	if err != nil {
		return dataset.FormattedPartitions{}, err
	}
	d.metrics.setPartitions(report.Partitions)
	return formatted, nil
}
