package trainer

import (
	"context"
	"fmt"
	"path/filepath"

	sftafero "github.com/sgl-project/sft-agent/pkg/afero"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/hfutil/modelconfig"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// MergeAndSave folds the adapter in adapterDir into a fresh copy of
// baseModelName and saves the standalone model to the merged model
// directory, which it returns. The training model is released first so the
// two never share accelerator memory.
func (t *Trainer) MergeAndSave(ctx context.Context, baseModelName, adapterDir string) (string, error) {
	logger := t.logger.WithField(logging.StageKey, "merge")

	if err := t.Close(ctx); err != nil {
		return "", fmt.Errorf("releasing training model before merge: %w", err)
	}

	if err := t.checkAdapter(ctx, baseModelName, adapterDir); err != nil {
		return "", err
	}

	mergedDir := t.config.MergedModelDirectory
	req := ftruntime.LoadModelRequest{
		Model:       baseModelName,
		Purpose:     ftruntime.PurposeMerge,
		Tokenizer:   t.tokenizer(),
		DeviceMap:   t.config.DeviceMap,
		TorchDtype:  t.config.MergeTorchDtype,
		AdapterPath: adapterDir,
	}
	err := ftruntime.WithModel(ctx, t.runtime, req, func(ctx context.Context, handle *ftruntime.ModelHandle) error {
		logger.Infof("Merging adapter %s into %s", adapterDir, baseModelName)
		return t.runtime.Merge(ctx, handle.ID, mergedDir)
	})
	if err != nil {
		return "", err
	}

	if err := t.checkMerged(mergedDir); err != nil {
		return "", err
	}
	logger.WithField("path", mergedDir).Info("Merged model saved")
	return mergedDir, nil
}

// checkAdapter makes sure adapterDir holds a causal LM LoRA adapter with
// weights and that the base model is a causal LM.
func (t *Trainer) checkAdapter(ctx context.Context, baseModelName, adapterDir string) error {
	adapter, err := modelconfig.LoadAdapterConfig(t.fs, filepath.Join(adapterDir, constants.AdapterConfigFileName))
	if err != nil {
		return err
	}
	if adapter.PeftType != constants.LoraPeftType {
		return fmt.Errorf("%w: peft type %q, want %q", ErrIncompatibleAdapter, adapter.PeftType, constants.LoraPeftType)
	}
	if adapter.TaskType != constants.CausalLMTaskType {
		return fmt.Errorf("%w: task type %q, want %q", ErrIncompatibleAdapter, adapter.TaskType, constants.CausalLMTaskType)
	}

	hasWeights := false
	for _, name := range []string{constants.AdapterSafetensorsFileName, constants.AdapterBinFileName} {
		ok, err := sftafero.DirContains(t.fs, adapterDir, name)
		if err != nil {
			return err
		}
		hasWeights = hasWeights || ok
	}
	if !hasWeights {
		return fmt.Errorf("%w: no adapter weights in %s", ErrIncompatibleAdapter, adapterDir)
	}

	data, err := t.config.ModelConfigs.FetchConfig(ctx, baseModelName)
	if err != nil {
		return fmt.Errorf("fetching config of base model %s: %w", baseModelName, err)
	}
	base, err := modelconfig.ParseModelConfig(data)
	if err != nil {
		return fmt.Errorf("base model %s: %w", baseModelName, err)
	}
	if !base.IsCausalLM() {
		return fmt.Errorf("%w: base model %s architecture %q is not a causal LM",
			ErrIncompatibleAdapter, baseModelName, base.GetArchitecture())
	}

	if adapter.BaseModelNameOrPath != "" && adapter.BaseModelNameOrPath != baseModelName {
		t.logger.Warnf("adapter was trained on %s, merging into %s", adapter.BaseModelNameOrPath, baseModelName)
	}
	return nil
}

// checkMerged makes sure dir is a standalone model: a config.json and no
// leftover adapter_config.json.
func (t *Trainer) checkMerged(dir string) error {
	hasConfig, err := sftafero.DirContains(t.fs, dir, constants.ModelConfigFileName)
	if err != nil {
		return err
	}
	if !hasConfig {
		return fmt.Errorf("%w: %s has no %s", ErrMergedArtifact, dir, constants.ModelConfigFileName)
	}

	hasAdapter, err := sftafero.DirContains(t.fs, dir, constants.AdapterConfigFileName)
	if err != nil {
		return err
	}
	if hasAdapter {
		return fmt.Errorf("%w: %s still holds %s", ErrMergedArtifact, dir, constants.AdapterConfigFileName)
	}

	if _, err := modelconfig.LoadModelConfig(t.fs, filepath.Join(dir, constants.ModelConfigFileName)); err != nil {
		return fmt.Errorf("%w: %v", ErrMergedArtifact, err)
	}
	return nil
}
