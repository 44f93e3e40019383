package constants

import "time"

// Agent
const (
	AgentAppName = "SFT_AGENT"

	// AnotherLogConfigKey is the viper key of the component logger.
	AnotherLogConfigKey = "another_log"
)

// Fine-tuning runtime
const (
	RuntimeEndpoint               = "http://localhost:5000"
	RuntimeStartupTimeout         = 15 * time.Minute
	RuntimeRetryInterval          = 1 * time.Minute
	RuntimeStatusPollInterval     = 1 * time.Minute
	RuntimeReleaseTimeout         = 2 * time.Minute
	RuntimeDataErrorMessagePrefix = "Data error"
)

// Datasets
const (
	DefaultScreeningDatasetPath = "files/mle_screening_dataset.csv"
	DefaultPubMedQADirectory    = "files"
	DefaultPartitionDirectory   = "data"

	TrainPartitionFileName      = "train.jsonl"
	ValidationPartitionFileName = "validation.jsonl"
	TestPartitionFileName       = "test.jsonl"
)

// Models and artifacts
const (
	DefaultBaseModel            = "Qwen/Qwen2.5-0.5B"
	DefaultAdapterDirectory     = "adapter/"
	DefaultMergedModelDirectory = "qwen_0.5_mle"
	DefaultReportPath           = "evaluation_report.json"

	ModelConfigFileName   = "config.json"
	AdapterConfigFileName = "adapter_config.json"

	// Adapter weights in either serialization PEFT writes.
	AdapterSafetensorsFileName = "adapter_model.safetensors"
	AdapterBinFileName         = "adapter_model.bin"
)

// Training defaults
const (
	DefaultMaxLength   = 512
	DefaultLoraR       = 16
	DefaultLoraAlpha   = 32
	DefaultLoraDropout = 0.05
	DefaultLoraBias    = "none"
	CausalLMTaskType   = "CAUSAL_LM"
	LoraPeftType       = "LORA"

	// LabelIgnoreIndex marks label positions excluded from the loss.
	LabelIgnoreIndex = -100

	TrackingDisabled = "none"

	// DefaultTrackingReporter is the integration used when tracking is on.
	DefaultTrackingReporter = "wandb"

	// ScratchPrefix names per-run training output directories.
	ScratchPrefix = "sft-"

	DefaultComputeDtype = "bfloat16"
	DefaultQuantType    = "nf4"
)
