package ftruntime

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// WithModel loads a model, hands it to fn and releases it once fn returns,
// whatever the outcome. A release failure is reported alongside fn's error
// instead of replacing it.
func WithModel(ctx context.Context, rt Runtime, req LoadModelRequest, fn func(ctx context.Context, handle *ModelHandle) error) (err error) {
	handle, err := rt.LoadModel(ctx, req)
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := Release(ctx, rt, handle); releaseErr != nil {
			err = multierror.Append(err, releaseErr).ErrorOrNil()
		}
	}()

	return fn(ctx, handle)
}

// Release frees handle on a context detached from ctx's cancellation, so a
// cancelled run still gives its accelerator memory back.
func Release(ctx context.Context, rt Runtime, handle *ModelHandle) error {
	if handle == nil {
		return nil
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.ReleaseTimeout())
	defer cancel()

	return rt.ReleaseModel(releaseCtx, handle.ID)
}
