package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

type fakeS3 struct {
	deny    bool
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	server  *httptest.Server
}

func newFakeS3(t *testing.T) *fakeS3 {
	f := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		if f.deny {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestStorage(t *testing.T, endpoint string, fs afero.Fs) *S3Storage {
	s, err := New(context.Background(), &Config{
		Region:                  "us-east-1",
		Endpoint:                endpoint,
		ForcePathStyle:          true,
		DisableComputeChecksums: true,
		AccessKeyID:             "AKIDEXAMPLE",
		SecretAccessKey:         "secret",
	}, fs, logging.NewTestLogger())
	require.NoError(t, err)
	return s
}

func TestS3StorageUpload(t *testing.T) {
	fake := newFakeS3(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/evaluation_report.json", []byte(`{"f1":0.5}`), 0o644))

	s := newTestStorage(t, fake.server.URL, fs)
	target, err := ParseURI("s3://models/runs/qwen/")
	require.NoError(t, err)

	err = s.Upload(context.Background(), "/out/evaluation_report.json", target.Child("evaluation_report.json"))
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, `{"f1":0.5}`, fake.objects["/models/runs/qwen/evaluation_report.json"])
	assert.Equal(t, "application/json", fake.types["/models/runs/qwen/evaluation_report.json"])
}

func TestS3StorageUploadReportsErrorCode(t *testing.T) {
	fake := newFakeS3(t)
	fake.deny = true
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/model.zip", []byte("zip"), 0o644))

	s := newTestStorage(t, fake.server.URL, fs)
	err := s.Upload(context.Background(), "/out/model.zip", ObjectURI{BucketName: "models", ObjectName: "model.zip"})
	assert.ErrorContains(t, err, "(AccessDenied)")
}

func TestNewWithAssumedRole(t *testing.T) {
	cfg := &Config{
		Region:          "us-east-1",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		RoleARN:         "arn:aws:iam::123456789012:role/publisher",
		ExternalID:      "sft",
	}
	_, err := New(context.Background(), cfg, afero.NewMemMapFs(), logging.Discard())
	assert.NoError(t, err)
}

func TestS3StorageUploadMissingFile(t *testing.T) {
	fake := newFakeS3(t)
	s := newTestStorage(t, fake.server.URL, afero.NewMemMapFs())

	err := s.Upload(context.Background(), "/missing.zip", ObjectURI{BucketName: "models", ObjectName: "missing.zip"})
	assert.ErrorContains(t, err, "failed to open file")
	assert.Empty(t, fake.objects)
}

func TestS3StoragePutRequiresObjectName(t *testing.T) {
	fake := newFakeS3(t)
	s := newTestStorage(t, fake.server.URL, afero.NewMemMapFs())

	err := s.Put(context.Background(), ObjectURI{BucketName: "models", Prefix: "runs"}, nil, "")
	assert.ErrorContains(t, err, "does not name an object")
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := &Config{Region: "us-east-1", AccessKeyID: "id", SecretAccessKey: "secret"}
	s, err := New(context.Background(), cfg, afero.NewMemMapFs(), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().PartSize, s.config.PartSize)
	assert.Equal(t, DefaultConfig().Concurrency, s.config.Concurrency)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{AccessKeyID: "id"}).Validate())
	assert.Error(t, (&Config{Endpoint: "not a url"}).Validate())
	assert.Error(t, (&Config{PartSize: 1024}).Validate())
	assert.NoError(t, DefaultConfig().Validate())
}
