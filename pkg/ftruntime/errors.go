package ftruntime

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sgl-project/sft-agent/pkg/constants"
)

var (
	// ErrDataRejected means the runtime refused the training data.
	ErrDataRejected = errors.New("training data rejected by runtime")

	// ErrRuntimeFailed means the runtime reported a failure of its own,
	// such as running out of accelerator memory.
	ErrRuntimeFailed = errors.New("fine-tuning runtime failed")
)

// StatusError is returned for any non-2xx answer from the runtime.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s - StatusCode: %d, Response: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status onto ErrDataRejected or ErrRuntimeFailed.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnprocessableEntity,
		strings.HasPrefix(e.Message, constants.RuntimeDataErrorMessagePrefix):
		return ErrDataRejected
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrRuntimeFailed
	default:
		return nil
	}
}
