package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/textmetrics"
)

var (
	// ErrIncompatibleAdapter is returned when an adapter cannot be merged
	// into the requested base model.
	ErrIncompatibleAdapter = errors.New("adapter incompatible with base model")

	// ErrMergedArtifact is returned when the merged model directory is not a
	// standalone model.
	ErrMergedArtifact = errors.New("merged model artifact invalid")

	// ErrNoTrainingModel is returned by ModelTraining once the training
	// model has been released.
	ErrNoTrainingModel = errors.New("training model not loaded")
)

// TrainingResult is the outcome of ModelTraining.
type TrainingResult struct {
	OutputDir       string
	AdapterDir      string
	Metrics         textmetrics.Report
	TrainingMetrics json.RawMessage
}

// Trainer fine-tunes the base model with a LoRA adapter in the runtime and
// merges the result. It owns at most one resident training model.
type Trainer struct {
	config  Config
	logger  logging.Interface
	runtime ftruntime.Runtime
	fs      afero.Fs
	metric  textmetrics.Metric

	files dataset.PartitionFiles
	model *ftruntime.ModelHandle
}

func newTrainer(config *Config) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("trainer config invalid: %w", err)
	}
	metric, err := textmetrics.Combine(config.Metrics...)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		config:  *config,
		logger:  config.AnotherLogger.WithField(logging.RunIDKey, config.RunID),
		runtime: config.Runtime,
		fs:      config.Fs,
		metric:  metric,
	}, nil
}

// New stores the partitions where the runtime reads them and loads the
// quantized, LoRA-prepared base model for training. Call Close to release it.
func New(ctx context.Context, config *Config, partitions dataset.FormattedPartitions) (*Trainer, error) {
	t, err := newTrainer(config)
	if err != nil {
		return nil, err
	}

	t.files, err = dataset.WritePartitions(t.fs, t.config.DataDirectory, partitions, t.logger)
	if err != nil {
		return nil, fmt.Errorf("storing partitions for training: %w", err)
	}

	if err := t.runtime.WaitUntilReady(ctx); err != nil {
		return nil, err
	}

	lora := t.config.Lora
	quantization := t.config.Quantization
	t.model, err = t.runtime.LoadModel(ctx, ftruntime.LoadModelRequest{
		Model:        t.config.BaseModel,
		Purpose:      ftruntime.PurposeTraining,
		Tokenizer:    t.tokenizer(),
		DeviceMap:    t.config.DeviceMap,
		Quantization: &quantization,
		Lora:         &lora,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewMerger returns a Trainer that holds no training model, for merging an
// adapter produced by an earlier run.
func NewMerger(ctx context.Context, config *Config) (*Trainer, error) {
	t, err := newTrainer(config)
	if err != nil {
		return nil, err
	}
	if err := t.runtime.WaitUntilReady(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trainer) tokenizer() string {
	if t.config.Tokenizer != "" {
		return t.config.Tokenizer
	}
	return t.config.BaseModel
}

// OutputDir is the scratch directory of this run's SFT job.
func (t *Trainer) OutputDir() string {
	return filepath.Join(t.config.ScratchDirectory, constants.ScratchPrefix+t.config.RunID)
}

// ModelTraining runs the SFT job on the train partition, evaluating on the
// test partition while training. It then saves the adapter and evaluates
// the trained model on the validation partition.
func (t *Trainer) ModelTraining(ctx context.Context) (*TrainingResult, error) {
	if t.model == nil {
		return nil, ErrNoTrainingModel
	}
	logger := t.logger.WithField(logging.StageKey, "train")

	outputDir := t.OutputDir()
	if err := t.fs.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch directory %s: %w", outputDir, err)
	}

	req := ftruntime.FineTuneRequest{
		ModelID:          t.model.ID,
		TrainDatasetFile: t.files.Train,
		EvalDatasetFile:  t.files.Test,
		SFTConfig: ftruntime.SFTConfig{
			MaxLength: t.config.MaxLength,
			OutputDir: outputDir,
			ReportTo:  t.config.Tracking.Reporters(),
			RunName:   t.config.Tracking.RunName,
		},
	}
	logger.Infof("Kicking off training of %s, output in %s", t.config.BaseModel, outputDir)
	if err := t.runtime.FineTune(ctx, req); err != nil {
		if ftruntime.IsDataError(err) {
			logger.WithError(err).Error("Training data rejected by runtime")
		}
		return nil, fmt.Errorf("starting fine-tuning: %w", err)
	}

	if err := t.runtime.WaitForCompletion(ctx); err != nil {
		return nil, err
	}

	logger.Info("Saving model")
	if err := t.runtime.SaveAdapter(ctx, t.model.ID, t.config.AdapterDirectory); err != nil {
		return nil, err
	}

	trainingMetrics, err := t.runtime.TrainingMetrics(ctx)
	if err != nil {
		return nil, err
	}

	report, err := t.evaluate(ctx, t.files.Validation)
	if err != nil {
		return nil, err
	}
	logging.WithFields(logger, reportFields(report)).Info("Evaluation completed")

	return &TrainingResult{
		OutputDir:       outputDir,
		AdapterDir:      t.config.AdapterDirectory,
		Metrics:         report,
		TrainingMetrics: trainingMetrics,
	}, nil
}

func (t *Trainer) evaluate(ctx context.Context, datasetFile string) (textmetrics.Report, error) {
	resp, err := t.runtime.Evaluate(ctx, ftruntime.EvaluateRequest{
		ModelID:           t.model.ID,
		DatasetFile:       datasetFile,
		ReturnPredictions: true,
	})
	if err != nil {
		return nil, err
	}

	report := textmetrics.Report{}.Merge(resp.Metrics)
	if len(resp.Logits) == 0 {
		return report, nil
	}
	scored, err := t.computeMetrics(resp.Logits, resp.LabelIDs)
	if err != nil {
		return nil, fmt.Errorf("scoring evaluation predictions: %w", err)
	}
	return report.Merge(scored), nil
}

// Close releases the training model if the Trainer still holds it.
func (t *Trainer) Close(ctx context.Context) error {
	if t.model == nil {
		return nil
	}
	handle := t.model
	t.model = nil
	return ftruntime.Release(ctx, t.runtime, handle)
}

func reportFields(r textmetrics.Report) map[string]interface{} {
	fields := make(map[string]interface{}, len(r))
	for k, v := range r {
		fields[k] = v
	}
	return fields
}
