// Package version reports the build identity of sft-agent.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitVersion is the git version of the build. It is set by the linker.
	GitVersion = "unknown"
	// GitCommit is the git commit hash of the build. It is set by the linker.
	GitCommit = "unknown"
	// BuildDate is the RFC 3339 build time. It is set by the linker.
	BuildDate = "unknown"
)

// Info is the build identity as reported by the CLI and logs.
type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

// Get returns the build identity of the running binary.
func Get() Info {
	return Info{
		GitVersion: GitVersion,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("gitVersion=%s, gitCommit=%s, buildDate=%s, goVersion=%s, platform=%s",
		i.GitVersion, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

// UserAgent names component in outgoing HTTP requests, e.g. "sft-agent-hub/v0.3.0".
func UserAgent(component string) string {
	name := "sft-agent"
	if component != "" {
		name += "-" + component
	}
	return name + "/" + GitVersion
}
