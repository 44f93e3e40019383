package modelconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// BaseModelConfig holds the config.json fields sft-agent reads from a base
// or merged model.
type BaseModelConfig struct {
	ModelType             string   `json:"model_type"`
	Architectures         []string `json:"architectures"`
	TorchDtype            string   `json:"torch_dtype"`
	TransformerVersion    string   `json:"transformers_version"`
	HiddenSize            int      `json:"hidden_size"`
	NumHiddenLayers       int      `json:"num_hidden_layers"`
	VocabSize             int      `json:"vocab_size"`
	MaxPositionEmbeddings int      `json:"max_position_embeddings"`
	TieWordEmbeddings     bool     `json:"tie_word_embeddings"`

	// Internal fields (not in JSON)
	ConfigPath string `json:"-"`
}

func (c *BaseModelConfig) GetModelType() string {
	return c.ModelType
}

func (c *BaseModelConfig) GetArchitecture() string {
	if len(c.Architectures) > 0 {
		return c.Architectures[0]
	}
	return ""
}

// GetContextLength returns the maximum context length supported by the model
func (c *BaseModelConfig) GetContextLength() int {
	return c.MaxPositionEmbeddings
}

// IsCausalLM reports whether any declared architecture is a causal LM head.
func (c *BaseModelConfig) IsCausalLM() bool {
	for _, a := range c.Architectures {
		if strings.HasSuffix(a, "ForCausalLM") {
			return true
		}
	}
	return false
}

// ParseModelConfig decodes config.json contents.
func ParseModelConfig(data []byte) (*BaseModelConfig, error) {
	var config BaseModelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse model config JSON: %w", err)
	}
	if config.ModelType == "" {
		return nil, fmt.Errorf("model_type field is missing or empty")
	}
	return &config, nil
}

// LoadModelConfig loads config.json from configPath.
func LoadModelConfig(fs afero.Fs, configPath string) (*BaseModelConfig, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	data, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config file '%s': %w", configPath, err)
	}

	config, err := ParseModelConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	config.ConfigPath = configPath
	return config, nil
}
