package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	defer func(v, c string) { GitVersion, GitCommit = v, c }(GitVersion, GitCommit)
	GitVersion, GitCommit = "v0.3.0", "abc123"

	info := Get()
	assert.Equal(t, "v0.3.0", info.GitVersion)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.String(), "gitVersion=v0.3.0, gitCommit=abc123")
}

func TestUserAgent(t *testing.T) {
	defer func(v string) { GitVersion = v }(GitVersion)
	GitVersion = "v0.3.0"

	assert.Equal(t, "sft-agent-hub/v0.3.0", UserAgent("hub"))
	assert.Equal(t, "sft-agent/v0.3.0", UserAgent(""))
}
