package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sgl-project/sft-agent/pkg/storage"
	"github.com/sgl-project/sft-agent/pkg/zipper"
)

// Publisher uploads a local file to object storage.
type Publisher interface {
	Upload(ctx context.Context, source string, target storage.ObjectURI) error
}

func (d *Driver) publisher(ctx context.Context) (Publisher, error) {
	if d.config.Publisher != nil {
		return d.config.Publisher, nil
	}
	s3Config := d.config.Publish.S3
	return storage.New(ctx, &s3Config, d.fs, d.logger)
}

// publish zips the merged model into workDir and uploads the archive and
// the report under the configured URI.
func (d *Driver) publish(ctx context.Context, mergedDir, workDir string) ([]string, error) {
	target, err := storage.ParseURI(d.config.Publish.URI)
	if err != nil {
		return nil, err
	}
	publisher, err := d.publisher(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.fs.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", workDir, err)
	}
	archiveName := filepath.Base(filepath.Clean(mergedDir)) + ".zip"
	archive := filepath.Join(workDir, archiveName)
	if err := zipper.ZipDirectory(d.fs, mergedDir, archive); err != nil {
		return nil, fmt.Errorf("zipping merged model: %w", err)
	}

	uploads := []struct {
		source string
		name   string
	}{
		{archive, archiveName},
		{d.config.Report.Path, filepath.Base(d.config.Report.Path)},
	}
	var published []string
	for _, u := range uploads {
		object := target.Child(u.name)
		if err := publisher.Upload(ctx, u.source, object); err != nil {
			return published, err
		}
		published = append(published, object.String())
	}
	return published, nil
}
