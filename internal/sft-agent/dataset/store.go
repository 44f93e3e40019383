package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	sftafero "github.com/sgl-project/sft-agent/pkg/afero"
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/logging"
)

// Files returns the partition file paths under dir.
func Files(dir string) PartitionFiles {
	return PartitionFiles{
		Train:      filepath.Join(dir, constants.TrainPartitionFileName),
		Validation: filepath.Join(dir, constants.ValidationPartitionFileName),
		Test:       filepath.Join(dir, constants.TestPartitionFileName),
	}
}

// WritePartitions stores each partition as a JSONL file under dir, one
// conversation per line.
func WritePartitions(fs afero.Fs, dir string, formatted FormattedPartitions, logger logging.Interface) (PartitionFiles, error) {
	files := Files(dir)
	for _, part := range []struct {
		path          string
		conversations []Conversation
	}{
		{files.Train, formatted.Train},
		{files.Validation, formatted.Validation},
		{files.Test, formatted.Test},
	} {
		data, err := encodeJSONL(part.conversations)
		if err != nil {
			return PartitionFiles{}, fmt.Errorf("encoding %s: %w", part.path, err)
		}
		if err := sftafero.AtomicWriteFile(fs, part.path, data, 0o644, logger); err != nil {
			return PartitionFiles{}, fmt.Errorf("writing %s: %w", part.path, err)
		}
	}

	logger.WithField("dir", dir).
		WithField("train", len(formatted.Train)).
		WithField("validation", len(formatted.Validation)).
		WithField("test", len(formatted.Test)).
		Info("Stored partitions")
	return files, nil
}

// ReadPartitions loads the partitions written by WritePartitions.
func ReadPartitions(fs afero.Fs, dir string) (FormattedPartitions, error) {
	files := Files(dir)
	var out FormattedPartitions
	var err error
	if out.Train, err = readJSONL(fs, files.Train); err != nil {
		return FormattedPartitions{}, err
	}
	if out.Validation, err = readJSONL(fs, files.Validation); err != nil {
		return FormattedPartitions{}, err
	}
	if out.Test, err = readJSONL(fs, files.Test); err != nil {
		return FormattedPartitions{}, err
	}
	return out, nil
}

func encodeJSONL(conversations []Conversation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, c := range conversations {
		if err := enc.Encode(c); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func readJSONL(fs afero.Fs, path string) ([]Conversation, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	out := []Conversation{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var c Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
