package modelconfig

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// StringList accepts either a JSON string or an array of strings, as PEFT
// writes target_modules in both shapes.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// AdapterConfig is a PEFT adapter_config.json.
type AdapterConfig struct {
	PeftType            string     `json:"peft_type"`
	TaskType            string     `json:"task_type"`
	BaseModelNameOrPath string     `json:"base_model_name_or_path"`
	R                   int        `json:"r"`
	LoraAlpha           int        `json:"lora_alpha"`
	LoraDropout         float64    `json:"lora_dropout"`
	Bias                string     `json:"bias"`
	TargetModules       StringList `json:"target_modules"`
	InferenceMode       bool       `json:"inference_mode"`

	ConfigPath string `json:"-"`
}

// ParseAdapterConfig decodes adapter_config.json contents.
func ParseAdapterConfig(data []byte) (*AdapterConfig, error) {
	var config AdapterConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse adapter config JSON: %w", err)
	}
	if config.PeftType == "" {
		return nil, fmt.Errorf("peft_type field is missing or empty")
	}
	return &config, nil
}

// LoadAdapterConfig loads adapter_config.json from configPath.
func LoadAdapterConfig(fs afero.Fs, configPath string) (*AdapterConfig, error) {
	data, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read adapter config file '%s': %w", configPath, err)
	}

	config, err := ParseAdapterConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	config.ConfigPath = configPath
	return config, nil
}
