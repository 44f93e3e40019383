package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

// Prepared is the outcome of a data preparation run.
type Prepared struct {
	Seed       uint64
	Partitions Partitions
	Formatted  FormattedPartitions
	Files      PartitionFiles
}

// Processor loads, splits, formats and stores the training data.
type Processor struct {
	config Config
	logger logging.Interface
	loader *ScreeningLoader
	pubmed *PubMedQARetriever
}

// NewProcessor constructs a processor from the given configuration.
func NewProcessor(config *Config) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("dataset config invalid: %w", err)
	}

	p := &Processor{
		config: *config,
		logger: config.AnotherLogger,
		loader: NewScreeningLoader(config.Delimiter, config.AnotherLogger),
	}
	if config.PubMedQA.Enabled {
		p.pubmed = NewPubMedQARetriever(config.Fs, config.PubMedQA.Directory, config.PubMedQA.Files, config.AnotherLogger)
	}
	return p, nil
}

// Load reads the screening dataset and, when enabled, appends the PubMedQA
// records after it.
func (p *Processor) Load(ctx context.Context) (RecordSet, error) {
	screening, err := p.loader.LoadDataScreening(ctx, p.config.ScreeningPath)
	if err != nil {
		return nil, err
	}
	if p.pubmed == nil {
		return screening, nil
	}

	pubmed, err := p.pubmed.RetrievePubMedQARecords()
	if err != nil {
		return nil, err
	}
	return CombineDatasets(screening, pubmed), nil
}

// Seed returns the configured split seed, drawing and logging a random one
// when none is set.
func (p *Processor) Seed() uint64 {
	if p.config.Seed != nil {
		return *p.config.Seed
	}
	seed := rand.Uint64()
	p.logger.WithField("seed", seed).Info("No split seed configured, drew a random one")
	return seed
}

// Prepare runs load, split, format and store.
func (p *Processor) Prepare(ctx context.Context) (*Prepared, error) {
	records, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	seed := p.Seed()
	partitions, err := TrainTestValidationSplit(records, seed)
	if err != nil {
		return nil, err
	}
	p.logger.WithField("seed", seed).
		WithField("train", len(partitions.Train)).
		WithField("validation", len(partitions.Validation)).
		WithField("test", len(partitions.Test)).
		Info("Split dataset")

	formatted := FormatPartitions(partitions)
	files, err := WritePartitions(p.config.Fs, p.config.PartitionDirectory, formatted, p.logger)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Seed:       seed,
		Partitions: partitions,
		Formatted:  formatted,
		Files:      files,
	}, nil
}

// ReadStored loads partitions written by an earlier Prepare.
func (p *Processor) ReadStored() (FormattedPartitions, PartitionFiles, error) {
	formatted, err := ReadPartitions(p.config.Fs, p.config.PartitionDirectory)
	if err != nil {
		return FormattedPartitions{}, PartitionFiles{}, err
	}
	return formatted, Files(p.config.PartitionDirectory), nil
}
