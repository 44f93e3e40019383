package ftruntime

import "encoding/json"

// Status is the training state reported by GET /status.
type Status string

const (
	StatusReady    Status = "READY"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// Purpose tells the runtime how a model will be used, which decides how it
// is loaded (quantized for training, full precision for merging, a generation
// pipeline for evaluation).
type Purpose string

const (
	PurposeTraining   Purpose = "training"
	PurposeMerge      Purpose = "merge"
	PurposeGeneration Purpose = "text-generation"
)

// Response is the generic body returned by the runtime.
type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// LoraConfig describes the low-rank adapter attached to a training model.
type LoraConfig struct {
	R             int      `mapstructure:"r" json:"r" validate:"gt=0"`
	LoraAlpha     int      `mapstructure:"lora_alpha" json:"lora_alpha" validate:"gt=0"`
	LoraDropout   float64  `mapstructure:"lora_dropout" json:"lora_dropout" validate:"gte=0,lt=1"`
	Bias          string   `mapstructure:"bias" json:"bias" validate:"oneof=none all lora_only"`
	TaskType      string   `mapstructure:"task_type" json:"task_type" validate:"required"`
	TargetModules []string `mapstructure:"target_modules" json:"target_modules,omitempty"`
}

// QuantizationConfig describes how base weights are quantized on load.
type QuantizationConfig struct {
	LoadIn4Bit          bool   `mapstructure:"load_in_4bit" json:"load_in_4bit"`
	ComputeDtype        string `mapstructure:"bnb_4bit_compute_dtype" json:"bnb_4bit_compute_dtype,omitempty"`
	QuantType           string `mapstructure:"bnb_4bit_quant_type" json:"bnb_4bit_quant_type,omitempty"`
	UseDoubleQuant      bool   `mapstructure:"bnb_4bit_use_double_quant" json:"bnb_4bit_use_double_quant,omitempty"`
	PrepareKBitTraining bool   `mapstructure:"prepare_kbit_training" json:"prepare_kbit_training"`
}

// LoadModelRequest is the body of POST /models.
type LoadModelRequest struct {
	Model        string              `json:"model"`
	Purpose      Purpose             `json:"purpose"`
	Tokenizer    string              `json:"tokenizer,omitempty"`
	Device       string              `json:"device,omitempty"`
	DeviceMap    string              `json:"device_map,omitempty"`
	TorchDtype   string              `json:"torch_dtype,omitempty"`
	Quantization *QuantizationConfig `json:"quantization,omitempty"`
	Lora         *LoraConfig         `json:"lora,omitempty"`
	AdapterPath  string              `json:"adapter_path,omitempty"`
}

// ModelHandle identifies a model resident in the runtime.
type ModelHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SFTConfig carries the supervised fine-tuning arguments.
type SFTConfig struct {
	MaxLength int      `json:"max_length"`
	OutputDir string   `json:"output_dir"`
	ReportTo  []string `json:"report_to"`
	RunName   string   `json:"run_name,omitempty"`
}

// FineTuneRequest is the body of POST /finetune.
type FineTuneRequest struct {
	ModelID          string    `json:"model_id"`
	TrainDatasetFile string    `json:"train_dataset_file"`
	EvalDatasetFile  string    `json:"eval_dataset_file"`
	SFTConfig        SFTConfig `json:"sft_config"`
}

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	ModelID           string `json:"model_id"`
	DatasetFile       string `json:"dataset_file"`
	ReturnPredictions bool   `json:"return_predictions"`
}

// EvaluateResponse holds the runtime's evaluation metrics and, when asked
// for, the raw [batch][sequence][vocabulary] scores and gold token ids.
type EvaluateResponse struct {
	Metrics  map[string]float64 `json:"metrics"`
	Logits   [][][]float64      `json:"logits,omitempty"`
	LabelIDs [][]int            `json:"label_ids,omitempty"`
}

type saveRequest struct {
	OutputDir string `json:"output_dir"`
}

// TrainingMetrics is the raw JSON document served by GET /metrics.
type TrainingMetrics = json.RawMessage
