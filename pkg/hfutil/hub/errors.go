package hub

import (
	"fmt"
	"io/fs"
)

// HTTPError represents an HTTP error from the Hub
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Message)
}

// EntryNotFoundError is raised when the repository exists but the file does not
type EntryNotFoundError struct {
	RepoID   string
	Revision string
	Path     string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in %s at revision %s", e.Path, e.RepoID, e.Revision)
}

// Is lets callers treat a missing hub file like a missing local one.
func (e *EntryNotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// GatedRepoError is raised when the token does not grant access to the repository
type GatedRepoError struct {
	RepoID     string
	StatusCode int
}

func (e *GatedRepoError) Error() string {
	return fmt.Sprintf("access to %s denied (HTTP %d), check hf_token", e.RepoID, e.StatusCode)
}
