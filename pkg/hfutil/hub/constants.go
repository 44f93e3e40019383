package hub

import (
	"os"
	"time"
)

const (
	DefaultEndpoint       = "https://huggingface.co"
	DefaultRevision       = "main"
	DefaultRequestTimeout = 30 * time.Second

	UserAgentHeader     = "User-Agent"
	AuthorizationHeader = "Authorization"

	// HuggingfaceCoURLTemplate is endpoint, repo, revision, file.
	HuggingfaceCoURLTemplate = "%s/%s/resolve/%s/%s"

	ConfigName = "config.json"
)

const (
	EnvHfToken    = "HF_TOKEN"
	EnvHfEndpoint = "HF_ENDPOINT"
)

// GetHfToken returns the HF token from environment
func GetHfToken() string {
	return os.Getenv(EnvHfToken)
}

// GetEndpoint returns HF_ENDPOINT, or the public Hub when it is unset.
func GetEndpoint() string {
	if e := os.Getenv(EnvHfEndpoint); e != "" {
		return e
	}
	return DefaultEndpoint
}
