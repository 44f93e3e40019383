package trainer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
	testutils "github.com/sgl-project/sft-agent/pkg/testing"
)

const causalLMConfig = `{"model_type":"qwen2","architectures":["Qwen2ForCausalLM"]}`

type fetcherFunc func(ctx context.Context, model string) ([]byte, error)

func (f fetcherFunc) FetchConfig(ctx context.Context, model string) ([]byte, error) {
	return f(ctx, model)
}

func staticConfig(body string) ConfigFetcher {
	return fetcherFunc(func(context.Context, string) ([]byte, error) { return []byte(body), nil })
}

type fixture struct {
	mock   *testutils.MockRuntime
	fs     afero.Fs
	config *Config
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mfs := afero.NewMemMapFs()
	mock := testutils.NewMockRuntime(mfs)
	t.Cleanup(mock.Server.Close)

	rtConfig, err := ftruntime.NewConfig(
		ftruntime.WithEndpoint(mock.URL()),
		ftruntime.WithIntervals(time.Millisecond, time.Millisecond),
		ftruntime.WithAnotherLog(logging.NewTestLogger()),
	)
	require.NoError(t, err)
	rt, err := ftruntime.NewClient(rtConfig)
	require.NoError(t, err)

	base := []Option{
		WithAnotherLog(logging.NewTestLogger()),
		WithFs(mfs),
		WithRuntime(rt),
		WithModelConfigs(staticConfig(causalLMConfig)),
		WithRunID("run-1"),
		func(c *Config) error {
			c.DataDirectory = "/data"
			c.ScratchDirectory = "/scratch"
			c.AdapterDirectory = "/adapter"
			c.MergedModelDirectory = "/merged"
			return nil
		},
	}
	config, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{mock: mock, fs: mfs, config: config}
}

func partitions() dataset.FormattedPartitions {
	return dataset.FormatPartitions(dataset.Partitions{
		Train:      dataset.RecordSet{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}},
		Validation: dataset.RecordSet{{Question: "q3", Answer: "a3"}},
		Test:       dataset.RecordSet{{Question: "q4", Answer: "a4"}},
	})
}

func TestConfig_WithViper(t *testing.T) {
	v := viper.New()
	v.Set("trainer.base_model", "/models/qwen")
	v.Set("trainer.lora.r", 8)
	v.Set("trainer.max_length", 256)
	v.Set("tracking.enabled", true)

	config, err := NewConfig(WithViper(v), WithRuntime(&ftruntime.Client{}), WithModelConfigs(staticConfig("{}")))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, "/models/qwen", config.BaseModel)
	assert.Equal(t, 8, config.Lora.R)
	assert.Equal(t, 32, config.Lora.LoraAlpha)
	assert.Equal(t, "CAUSAL_LM", config.Lora.TaskType)
	assert.Equal(t, 256, config.MaxLength)
	assert.True(t, config.Tracking.Enabled)
	assert.Equal(t, []string{"wandb"}, config.Tracking.Reporters())

	config.Lora.LoraDropout = 1.5
	assert.Error(t, config.Validate())
}

func TestTrackingReporters(t *testing.T) {
	assert.Equal(t, []string{"none"}, TrackingConfig{ReportTo: []string{"mlflow"}}.Reporters())
	assert.Equal(t, []string{"mlflow"}, TrackingConfig{Enabled: true, ReportTo: []string{"mlflow"}}.Reporters())
}

func TestNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := New(ctx, f.config, partitions())
	require.NoError(t, err)

	loads := f.mock.Loads()
	require.Len(t, loads, 1)
	assert.Equal(t, "Qwen/Qwen2.5-0.5B", loads[0].Model)
	assert.Equal(t, "training", loads[0].Purpose)

	quantization := loads[0].Request["quantization"].(map[string]interface{})
	assert.Equal(t, true, quantization["load_in_4bit"])
	assert.Equal(t, true, quantization["prepare_kbit_training"])
	lora := loads[0].Request["lora"].(map[string]interface{})
	assert.Equal(t, float64(16), lora["r"])
	assert.Equal(t, float64(32), lora["lora_alpha"])
	assert.Equal(t, 0.05, lora["lora_dropout"])
	assert.Equal(t, "none", lora["bias"])
	assert.Equal(t, "CAUSAL_LM", lora["task_type"])

	for _, path := range []string{"/data/train.jsonl", "/data/validation.jsonl", "/data/test.jsonl"} {
		ok, err := afero.Exists(f.fs, path)
		require.NoError(t, err)
		assert.True(t, ok, path)
	}

	require.NoError(t, tr.Close(ctx))
	require.NoError(t, tr.Close(ctx))
	assert.Equal(t, []string{"model-1"}, f.mock.Released())
	assert.Zero(t, f.mock.Resident())
}

func TestModelTraining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := New(ctx, f.config, partitions())
	require.NoError(t, err)
	defer func() { _ = tr.Close(ctx) }()

	result, err := tr.ModelTraining(ctx)
	require.NoError(t, err)

	fineTunes := f.mock.FineTunes()
	require.Len(t, fineTunes, 1)
	assert.Equal(t, "model-1", fineTunes[0]["model_id"])
	assert.Equal(t, "/data/train.jsonl", fineTunes[0]["train_dataset_file"])
	assert.Equal(t, "/data/test.jsonl", fineTunes[0]["eval_dataset_file"])
	sft := fineTunes[0]["sft_config"].(map[string]interface{})
	assert.Equal(t, float64(512), sft["max_length"])
	assert.Equal(t, "/scratch/sft-run-1", sft["output_dir"])
	assert.Equal(t, []interface{}{"none"}, sft["report_to"])

	ok, err := afero.Exists(f.fs, "/adapter/adapter_config.json")
	require.NoError(t, err)
	assert.True(t, ok)

	evaluations := f.mock.Evaluations()
	require.Len(t, evaluations, 1)
	assert.Equal(t, "/data/validation.jsonl", evaluations[0]["dataset_file"])

	assert.Equal(t, "/scratch/sft-run-1", result.OutputDir)
	assert.Equal(t, "/adapter", result.AdapterDir)
	assert.Equal(t, 1.25, result.Metrics["eval_loss"])
	assert.JSONEq(t, `{"train_loss": 1.5}`, string(result.TrainingMetrics))
}

func TestModelTraining_ScoresLogits(t *testing.T) {
	f := newFixture(t)
	f.mock.Logits = [][][]float64{
		{{0.1, 0.9, 0}, {0.8, 0.1, 0.1}, {0, 0, 1}},
	}
	f.mock.LabelIDs = [][]int{{1, 0, -100}}
	ctx := context.Background()

	tr, err := New(ctx, f.config, partitions())
	require.NoError(t, err)
	defer func() { _ = tr.Close(ctx) }()

	result, err := tr.ModelTraining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.25, result.Metrics["eval_loss"])
	assert.InDelta(t, 1.0, result.Metrics["f1"], 1e-9)
	assert.InDelta(t, 1.0, result.Metrics["rouge1"], 1e-9)
	assert.Contains(t, result.Metrics, "bleu")
}

func TestModelTraining_Tracking(t *testing.T) {
	f := newFixture(t, func(c *Config) error {
		c.Tracking = TrackingConfig{Enabled: true, RunName: "mle"}
		return nil
	})
	ctx := context.Background()

	tr, err := New(ctx, f.config, partitions())
	require.NoError(t, err)
	defer func() { _ = tr.Close(ctx) }()

	_, err = tr.ModelTraining(ctx)
	require.NoError(t, err)
	sft := f.mock.FineTunes()[0]["sft_config"].(map[string]interface{})
	assert.Equal(t, []interface{}{"wandb"}, sft["report_to"])
	assert.Equal(t, "mle", sft["run_name"])
}

func TestModelTraining_Failures(t *testing.T) {
	t.Run("data rejected", func(t *testing.T) {
		f := newFixture(t)
		f.mock.FineTuneStatusCode = 422
		f.mock.FineTuneMessage = "Data error: missing messages"
		ctx := context.Background()

		tr, err := New(ctx, f.config, partitions())
		require.NoError(t, err)
		defer func() { _ = tr.Close(ctx) }()

		_, err = tr.ModelTraining(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ftruntime.ErrDataRejected)
		assert.Empty(t, f.mock.Evaluations())
	})

	t.Run("training failed", func(t *testing.T) {
		f := newFixture(t)
		f.mock.Statuses = []string{"RUNNING", "FAILED"}
		ctx := context.Background()

		tr, err := New(ctx, f.config, partitions())
		require.NoError(t, err)
		defer func() { _ = tr.Close(ctx) }()

		_, err = tr.ModelTraining(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ftruntime.ErrRuntimeFailed)
		assert.Equal(t, 1, f.mock.Terminated())
	})

	t.Run("closed", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		tr, err := New(ctx, f.config, partitions())
		require.NoError(t, err)
		require.NoError(t, tr.Close(ctx))

		_, err = tr.ModelTraining(ctx)
		assert.True(t, errors.Is(err, ErrNoTrainingModel))
	})
}

func TestComputeMetrics(t *testing.T) {
	logits := [][][]float64{
		{{0, 5, 1}, {3, 1, 0}, {0, 0, 9}},
		{{0, 0, 1}, {1, 0, 0}},
	}

	report, err := ComputeMetrics(logits, [][]int{{1, 0, 2}, {2, -100}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report["f1"], 1e-9)
	assert.InDelta(t, 1.0, report["rougeL"], 1e-9)

	report, err = ComputeMetrics(logits, [][]int{{1, 1, 1}, {0, -100}})
	require.NoError(t, err)
	assert.Less(t, report["f1"], 1.0)

	_, err = ComputeMetrics(nil, nil)
	assert.Error(t, err)
}
