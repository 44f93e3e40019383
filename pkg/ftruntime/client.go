package ftruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/version"
)

// Runtime is the fine-tuning runtime as seen by the trainer and evaluator.
type Runtime interface {
	WaitUntilReady(ctx context.Context) error
	LoadModel(ctx context.Context, req LoadModelRequest) (*ModelHandle, error)
	ReleaseModel(ctx context.Context, id string) error
	FineTune(ctx context.Context, req FineTuneRequest) error
	Status(ctx context.Context) (*Response, error)
	WaitForCompletion(ctx context.Context) error
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error)
	SaveAdapter(ctx context.Context, id, outputDir string) error
	Merge(ctx context.Context, id, outputDir string) error
	TrainingMetrics(ctx context.Context) (TrainingMetrics, error)
	Terminate(ctx context.Context) error

	// OpenAIBaseURL is the root of the OpenAI-compatible generation API.
	OpenAIBaseURL() string
	APIKey() string
	ReleaseTimeout() time.Duration
}

var _ Runtime = &Client{}

// Client talks to the runtime sidecar over HTTP.
type Client struct {
	logger logging.Interface
	config Config
	client *http.Client
}

// NewClient constructs a new runtime client from the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("runtime client config invalid: %w", err)
	}

	return &Client{
		logger: config.AnotherLogger,
		config: *config,
		client: &http.Client{Timeout: config.RequestTimeout},
	}, nil
}

// OpenAIBaseURL implements Runtime.
func (c *Client) OpenAIBaseURL() string {
	return strings.TrimRight(c.config.Endpoint, "/") + "/v1"
}

// APIKey implements Runtime.
func (c *Client) APIKey() string { return c.config.APIKey }

// ReleaseTimeout implements Runtime.
func (c *Client) ReleaseTimeout() time.Duration { return c.config.ReleaseTimeout }

// WaitUntilReady retries GET /status with exponential backoff until the
// runtime answers or the startup timeout runs out.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval / 8
	b.MaxInterval = c.config.RetryInterval
	b.MaxElapsedTime = c.config.StartupTimeout

	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.WithField("attempt", attempt).Infof("runtime is starting, checking again: %v", err)
			return err
		}
		c.logger.Infof("runtime is up, status %s", resp.Status)
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("can't reach fine-tuning runtime at %s within %s: %w",
			c.config.Endpoint, c.config.StartupTimeout, err)
	}
	return nil
}

// LoadModel asks the runtime to load a model.
func (c *Client) LoadModel(ctx context.Context, req LoadModelRequest) (*ModelHandle, error) {
	var handle ModelHandle
	if err := c.do(ctx, http.MethodPost, "/models", req, &handle); err != nil {
		return nil, fmt.Errorf("loading model %s for %s: %w", req.Model, req.Purpose, err)
	}
	if handle.ID == "" {
		return nil, fmt.Errorf("loading model %s: runtime returned no model id", req.Model)
	}
	c.logger.WithField("model", req.Model).
		WithField("purpose", req.Purpose).
		WithField("modelID", handle.ID).
		Info("Model loaded into runtime")
	return &handle, nil
}

// ReleaseModel frees a model's accelerator memory.
func (c *Client) ReleaseModel(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/models/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("releasing model %s: %w", id, err)
	}
	c.logger.WithField("modelID", id).Info("Model released from runtime")
	return nil
}

// FineTune starts a supervised fine-tuning job. It returns once the runtime
// accepted the job; use WaitForCompletion to follow it.
func (c *Client) FineTune(ctx context.Context, req FineTuneRequest) error {
	var resp Response
	if err := c.do(ctx, http.MethodPost, "/finetune", req, &resp); err != nil {
		return err
	}
	c.logger.Infof("/finetune - Status: %s, Response: %s", resp.Status, resp.Message)
	return nil
}

// Status returns the current training status.
func (c *Client) Status(ctx context.Context) (*Response, error) {
	var resp Response
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitForCompletion polls /status until training finishes. A FAILED or
// unknown status terminates the runtime job and returns an error.
func (c *Client) WaitForCompletion(ctx context.Context) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to call /status: %w", err)
		}
		c.logger.Infof("/status - Status: %s, Response: %s", resp.Status, resp.Message)

		switch resp.Status {
		case StatusFinished:
			return nil
		case StatusRunning, StatusReady:
		case StatusFailed:
			c.terminateQuietly(ctx)
			return fmt.Errorf("training failed: %s: %w", resp.Message, ErrRuntimeFailed)
		default:
			c.terminateQuietly(ctx)
			return fmt.Errorf("unknown training status %q: %s", resp.Status, resp.Message)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Evaluate runs an evaluation pass of a resident model over a dataset file.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	if err := c.do(ctx, http.MethodPost, "/evaluate", req, &resp); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", req.DatasetFile, err)
	}
	return &resp, nil
}

// SaveAdapter persists the adapter weights of a resident training model.
func (c *Client) SaveAdapter(ctx context.Context, id, outputDir string) error {
	path := "/models/" + url.PathEscape(id) + "/adapter"
	if err := c.do(ctx, http.MethodPost, path, saveRequest{OutputDir: outputDir}, nil); err != nil {
		return fmt.Errorf("saving adapter to %s: %w", outputDir, err)
	}
	return nil
}

// Merge folds the attached adapter into the base weights of a resident model
// and saves the result.
func (c *Client) Merge(ctx context.Context, id, outputDir string) error {
	path := "/models/" + url.PathEscape(id) + "/merge"
	if err := c.do(ctx, http.MethodPost, path, saveRequest{OutputDir: outputDir}, nil); err != nil {
		return fmt.Errorf("merging model into %s: %w", outputDir, err)
	}
	return nil
}

// TrainingMetrics returns the runtime's training metrics document.
func (c *Client) TrainingMetrics(ctx context.Context) (TrainingMetrics, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to call /metrics: %w", err)
	}
	return raw, nil
}

// Terminate stops the runtime's training process.
func (c *Client) Terminate(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/terminate", nil, nil)
}

func (c *Client) terminateQuietly(ctx context.Context) {
	c.logger.Info("Terminating training process..")
	if err := c.Terminate(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warnf("failed to call /terminate: %v", err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.Endpoint, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent("runtime"))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response %s: %w", path, string(respBody), err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	return strings.TrimSpace(string(body))
}

// IsDataError reports whether err means the runtime rejected the data.
func IsDataError(err error) bool {
	return errors.Is(err, ErrDataRejected)
}
