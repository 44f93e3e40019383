package ftruntime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/sft-agent/pkg/ftruntime"
)

func TestWithModel_ReleasesOnSuccess(t *testing.T) {
	mock, _ := newMock(t)
	client := newClient(t, mock.URL())

	var seen string
	err := ftruntime.WithModel(context.Background(), client,
		ftruntime.LoadModelRequest{Model: "qwen_0.5_mle", Purpose: ftruntime.PurposeGeneration},
		func(ctx context.Context, handle *ftruntime.ModelHandle) error {
			seen = handle.ID
			assert.Equal(t, 1, mock.Resident())
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{seen}, mock.Released())
	assert.Equal(t, 0, mock.Resident())
}

func TestWithModel_ReleasesOnError(t *testing.T) {
	mock, _ := newMock(t)
	client := newClient(t, mock.URL())
	boom := errors.New("boom")

	err := ftruntime.WithModel(context.Background(), client,
		ftruntime.LoadModelRequest{Model: "base", Purpose: ftruntime.PurposeMerge},
		func(context.Context, *ftruntime.ModelHandle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mock.Released(), 1)
	assert.Equal(t, 0, mock.Resident())
}

func TestWithModel_ReleasesOnCancel(t *testing.T) {
	mock, _ := newMock(t)
	client := newClient(t, mock.URL())
	ctx, cancel := context.WithCancel(context.Background())

	err := ftruntime.WithModel(ctx, client,
		ftruntime.LoadModelRequest{Model: "base", Purpose: ftruntime.PurposeMerge},
		func(ctx context.Context, _ *ftruntime.ModelHandle) error {
			cancel()
			return ctx.Err()
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.Resident())
}

func TestWithModel_ReleaseFailureKeepsPrimaryError(t *testing.T) {
	mock, _ := newMock(t)
	client := newClient(t, mock.URL())
	boom := errors.New("boom")

	err := ftruntime.WithModel(context.Background(), client,
		ftruntime.LoadModelRequest{Model: "base", Purpose: ftruntime.PurposeMerge},
		func(ctx context.Context, handle *ftruntime.ModelHandle) error {
			// release early so the deferred release hits a 404
			require.NoError(t, client.ReleaseModel(ctx, handle.ID))
			return boom
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "releasing model")
}

func TestWithModel_LoadFailure(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1")
	called := false

	err := ftruntime.WithModel(context.Background(), client,
		ftruntime.LoadModelRequest{Model: "base"},
		func(context.Context, *ftruntime.ModelHandle) error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)
}
