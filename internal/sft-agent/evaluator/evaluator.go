package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/errgroup"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/textmetrics"
)

// placeholderAPIKey is sent when the runtime has no key configured, since
// OpenAI-compatible servers expect some bearer token.
const placeholderAPIKey = "EMPTY"

// Evaluator scores a model's generated answers against reference answers.
// It holds a text-generation pipeline in the runtime until Close.
type Evaluator struct {
	config  Config
	logger  logging.Interface
	runtime ftruntime.Runtime
	metric  textmetrics.Metric
	chat    model.BaseChatModel
	model   *ftruntime.ModelHandle
}

// New loads a generation pipeline for the configured model and binds a chat
// client to it.
func New(ctx context.Context, config *Config) (*Evaluator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("evaluator config invalid: %w", err)
	}
	metric, err := textmetrics.Combine(config.Metrics...)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		config:  *config,
		logger:  config.AnotherLogger.WithField(logging.StageKey, "evaluate"),
		runtime: config.Runtime,
		metric:  metric,
	}

	if err := e.runtime.WaitUntilReady(ctx); err != nil {
		return nil, err
	}
	e.model, err = e.runtime.LoadModel(ctx, ftruntime.LoadModelRequest{
		Model:      config.ModelPath,
		Purpose:    ftruntime.PurposeGeneration,
		Tokenizer:  config.Tokenizer,
		Device:     config.Device,
		DeviceMap:  config.DeviceMap,
		TorchDtype: config.TorchDtype,
	})
	if err != nil {
		return nil, err
	}

	e.chat = config.ChatModel
	if e.chat == nil {
		if e.chat, err = e.newChatModel(ctx); err != nil {
			return nil, errors.Join(err, e.Close(ctx))
		}
	}
	return e, nil
}

func (e *Evaluator) newChatModel(ctx context.Context) (model.BaseChatModel, error) {
	apiKey := e.runtime.APIKey()
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	name := e.model.Name
	if name == "" {
		name = e.config.ModelPath
	}

	cfg := &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     e.runtime.OpenAIBaseURL(),
		Model:       name,
		Timeout:     e.config.RequestTimeout,
		Temperature: e.config.Temperature,
	}
	if e.config.MaxNewTokens > 0 {
		maxTokens := e.config.MaxNewTokens
		cfg.MaxTokens = &maxTokens
	}

	chat, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating chat model for %s: %w", name, err)
	}
	return chat, nil
}

// EvaluateModel generates an answer for every conversation from all turns
// before its final assistant turn, then scores the answers against those
// assistant turns.
func (e *Evaluator) EvaluateModel(ctx context.Context, conversations []dataset.Conversation) (textmetrics.Report, error) {
	e.logger.Infof("Evaluating %s on %d conversations", e.config.ModelPath, len(conversations))

	predictions := make([]string, len(conversations))
	references := make([]string, len(conversations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i, conv := range conversations {
		references[i] = conv.Reference()
		g.Go(func() error {
			resp, err := e.chat.Generate(gctx, dataset.SchemaMessages(conv.Prompt()))
			if err != nil {
				return fmt.Errorf("generating answer %d: %w", i, err)
			}
			predictions[i] = strings.TrimSpace(resp.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := e.metric.Compute(predictions, references)
	if err != nil {
		return nil, fmt.Errorf("scoring generated answers: %w", err)
	}
	logging.WithFields(e.logger, reportFields(report)).Info("Evaluation completed")
	return report, nil
}

// Close releases the generation pipeline. Calling it again is a no-op.
func (e *Evaluator) Close(ctx context.Context) error {
	if e.model == nil {
		return nil
	}
	handle := e.model
	e.model = nil
	return ftruntime.Release(ctx, e.runtime, handle)
}

func reportFields(r textmetrics.Report) map[string]interface{} {
	fields := make(map[string]interface{}, len(r))
	for k, v := range r {
		fields[k] = v
	}
	return fields
}
