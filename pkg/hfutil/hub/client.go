package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// HubClient fetches small repository files such as config.json, either from
// a local model directory or from the Hub.
type HubClient struct {
	config *HubConfig
	logger logging.Interface
	fs     afero.Fs
	http   *http.Client
}

// NewHubClient creates a new Hub client with the provided configuration
func NewHubClient(config *HubConfig, fs afero.Fs) (*HubClient, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid hub config: %w", err)
	}

	return &HubClient{
		config: config,
		logger: config.Logger,
		fs:     fs,
		http:   NewHTTPClientWithTimeout(config.RequestTimeout),
	}, nil
}

// FetchFile returns the contents of filename for a model given either as a
// local directory or as a Hub repository id.
func (c *HubClient) FetchFile(ctx context.Context, modelNameOrPath, filename string) ([]byte, error) {
	if isDir, _ := afero.IsDir(c.fs, modelNameOrPath); isDir {
		path := filepath.Join(modelNameOrPath, filename)
		c.logger.WithField("path", path).Debug("Reading local model file")
		return afero.ReadFile(c.fs, path)
	}

	rawURL, err := HfHubURL(c.config.Endpoint, modelNameOrPath, c.config.Revision, filename)
	if err != nil {
		return nil, err
	}
	c.logger.WithField("url", rawURL).Debug("Fetching model file from hub")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.config.UserAgent != "" {
		req.Header.Set(UserAgentHeader, c.config.UserAgent)
	}
	if c.config.Token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, handleHTTPError(resp, modelNameOrPath, c.config.Revision, filename, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// FetchConfig returns the model's config.json.
func (c *HubClient) FetchConfig(ctx context.Context, modelNameOrPath string) ([]byte, error) {
	return c.FetchFile(ctx, modelNameOrPath, ConfigName)
}

func handleHTTPError(resp *http.Response, repoID, revision, filename, rawURL string) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &EntryNotFoundError{RepoID: repoID, Revision: revision, Path: filename}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &GatedRepoError{RepoID: repoID, StatusCode: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Message: strings.TrimSpace(string(body))}
	}
}

// HfHubURL constructs the resolve URL of a file in a model repository.
func HfHubURL(endpoint, repoID, revision, filename string) (string, error) {
	if repoID == "" || filename == "" {
		return "", fmt.Errorf("repo id and filename are required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if revision == "" {
		revision = DefaultRevision
	}
	return fmt.Sprintf(HuggingfaceCoURLTemplate,
		strings.TrimRight(endpoint, "/"), repoID, url.PathEscape(revision), escapeFilePath(filename)), nil
}

// escapeFilePath escapes each component of a file path separately, preserving forward slashes
func escapeFilePath(filename string) string {
	parts := strings.Split(filename, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
